// Package provider defines phone lookup adapters and the policy wrapper that
// turns one adapter call sequence into an attempt record.
package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/lead-enrich/internal/model"
)

// Provider names, in default waterfall order.
const (
	NameOrion  = "OrionConnect"
	NameNimbus = "NimbusLookup"
	NameAstra  = "AstraDialer"
)

// Result is a normalized lookup answer. An empty Phone means no match.
type Result struct {
	Phone string `json:"phone"`
}

// Adapter wraps one external phone lookup service.
type Adapter interface {
	// Name returns the provider identifier (matches the name in waterfall config).
	Name() string
	// RequiredFields lists the lead attributes the provider needs.
	RequiredFields() []model.FieldName
	// Lookup performs exactly one remote call. It never writes to the lead store.
	Lookup(ctx context.Context, lead model.LeadRef) (Result, error)
}

// Registry manages available adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry, replacing one with the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
