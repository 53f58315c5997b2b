// Package batch fans a set of lead ids out to the per-lead waterfall and
// aggregates the outcomes into a single report.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/store"
)

// DefaultMaxConcurrentLeads bounds how many leads run their waterfall at once.
const DefaultMaxConcurrentLeads = 5

// Batch-level failure messages.
const (
	ErrNoLeadIDs    = "leadIds must be a non-empty array"
	ErrNoLeadsFound = "no leads found for the given ids"
)

// Runner enriches one lead. Both the in-process orchestrator and the
// Temporal runner satisfy it.
type Runner interface {
	Enrich(ctx context.Context, lead model.LeadRef) (*model.EnrichmentOutcome, error)
}

// Config controls batch fan-out.
type Config struct {
	MaxConcurrentLeads int
	// Timeout caps the whole batch. Zero means no deadline.
	Timeout time.Duration
}

// Coordinator resolves lead ids and runs each lead through a Runner.
type Coordinator struct {
	repo   store.LeadRepository
	runner Runner
	cfg    Config
}

// New creates a Coordinator. A non-positive MaxConcurrentLeads falls back to
// DefaultMaxConcurrentLeads.
func New(repo store.LeadRepository, runner Runner, cfg Config) *Coordinator {
	if cfg.MaxConcurrentLeads <= 0 {
		cfg.MaxConcurrentLeads = DefaultMaxConcurrentLeads
	}
	return &Coordinator{repo: repo, runner: runner, cfg: cfg}
}

type slot struct {
	outcome *model.EnrichmentOutcome
	err     *model.BatchError
}

// Execute enriches every resolvable lead among leadIDs. It never returns an
// error: input failures flip Success and per-lead failures are isolated into
// Errors. Results follow the order in which leads were resolved.
func (c *Coordinator) Execute(ctx context.Context, leadIDs []int64) *model.BatchReport {
	report := model.NewBatchReport()
	report.BatchID = uuid.NewString()
	log := zap.L().With(zap.String("batch_id", report.BatchID))

	if len(leadIDs) == 0 {
		return report.Fail(ErrNoLeadIDs)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	ids := dedupe(leadIDs)

	leads, err := c.repo.FindManyByIDs(ctx, ids)
	if err != nil {
		log.Error("batch: load leads failed", zap.Error(err))
		return report.Fail(fmt.Sprintf("failed to load leads: %v", err))
	}
	if len(leads) == 0 {
		log.Warn("batch: no leads resolved", zap.Int("requested", len(ids)))
		return report.Fail(ErrNoLeadsFound)
	}

	log.Info("batch: starting",
		zap.Int("requested", len(ids)),
		zap.Int("resolved", len(leads)),
		zap.Int("concurrency", c.cfg.MaxConcurrentLeads),
	)

	slots := make([]slot, len(leads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrentLeads)

	for i := range leads {
		lead := leads[i]
		g.Go(func() error {
			slots[i] = c.process(gctx, lead)
			// Per-lead failures are recorded in the slot, never propagated.
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		if s.err != nil {
			report.Errors = append(report.Errors, *s.err)
			continue
		}
		report.Results = append(report.Results, *s.outcome)
		report.ProcessedCount++
	}

	log.Info("batch: complete",
		zap.Int("processed", report.ProcessedCount),
		zap.Int("failed", len(report.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report
}

func (c *Coordinator) process(ctx context.Context, lead model.Lead) (s slot) {
	log := zap.L().With(zap.Int64("lead_id", lead.ID))
	fail := func(msg string, attempts []model.AttemptRecord) slot {
		return slot{err: &model.BatchError{
			LeadID:   lead.ID,
			LeadName: lead.FullName(),
			Error:    msg,
			Attempts: attempts,
		}}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("batch: lead panicked", zap.Any("panic", r))
			s = fail(fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	out, err := c.runner.Enrich(ctx, lead.Ref())
	if err != nil {
		var attempts []model.AttemptRecord
		if out != nil {
			attempts = out.Attempts
		}
		log.Warn("batch: lead failed", zap.Error(err), zap.Int("attempts", len(attempts)))
		return fail(err.Error(), attempts)
	}
	if out == nil {
		return fail("no outcome returned", nil)
	}
	return slot{outcome: out}
}

func dedupe(ids []int64) []int64 {
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
