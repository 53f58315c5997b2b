// Package store persists leads for the enrichment engine.
package store

import (
	"context"
	"sort"

	"github.com/sells-group/lead-enrich/internal/model"
)

// LeadRepository is the lead access the enrichment engine needs. The only
// write it performs is the phone field.
type LeadRepository interface {
	// FindManyByIDs returns the leads among ids that exist, in the order of ids.
	// Unknown ids are omitted without error.
	FindManyByIDs(ctx context.Context, ids []int64) ([]model.Lead, error)
	// FindByID returns the lead, or nil without error if it does not exist.
	FindByID(ctx context.Context, id int64) (*model.Lead, error)
	// UpdatePhone sets phone and updated_at and returns the updated lead, or nil
	// if the lead does not exist.
	UpdatePhone(ctx context.Context, id int64, phone string) (*model.Lead, error)
}

// Store is a LeadRepository with lifecycle operations.
type Store interface {
	LeadRepository

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// uniqueIDs drops duplicates, keeping first occurrence order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderByIDs sorts leads to follow the position of their id in ids.
func orderByIDs(leads []model.Lead, ids []int64) []model.Lead {
	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}
	sort.SliceStable(leads, func(i, j int) bool {
		return pos[leads[i].ID] < pos[leads[j].ID]
	})
	return leads
}
