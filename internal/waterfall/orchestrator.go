// Package waterfall runs the per-lead phone enrichment cascade: providers are
// tried in order until one yields a number that is then persisted.
package waterfall

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/idempotency"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/waterfall/provider"
)

// Orchestrator drives one lead through Start, Trying(i), then Succeeded or
// Exhausted. Attempts are recorded in provider order and nothing runs after a
// saved success.
type Orchestrator struct {
	specs []provider.Spec
	saver Saver
	group *idempotency.Group
}

// NewOrchestrator creates an orchestrator over specs in waterfall order.
// group may be nil, in which case concurrent runs for the same lead are
// collapsed within this orchestrator only.
func NewOrchestrator(specs []provider.Spec, saver Saver, group *idempotency.Group) *Orchestrator {
	if group == nil {
		group = idempotency.NewGroup(nil)
	}
	return &Orchestrator{specs: specs, saver: saver, group: group}
}

// Providers returns the provider names in waterfall order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.specs))
	for i, s := range o.specs {
		names[i] = s.Name
	}
	return names
}

// Enrich runs the waterfall for lead under its idempotency key. A caller that
// arrives while a run for the same lead is in flight receives that run's
// outcome instead of starting another.
func (o *Orchestrator) Enrich(ctx context.Context, lead model.LeadRef) (*model.EnrichmentOutcome, error) {
	out, _, err := o.group.Do(ctx, idempotency.Key(lead.ID), func(ctx context.Context) (*model.EnrichmentOutcome, error) {
		return o.Run(ctx, lead)
	})
	return out, err
}

// Run executes the waterfall without idempotency coordination. On context
// cancellation or a provider panic it returns the attempts made so far
// together with the error.
func (o *Orchestrator) Run(ctx context.Context, lead model.LeadRef) (out *model.EnrichmentOutcome, err error) {
	start := time.Now()
	log := zap.L().With(zap.Int64("lead_id", lead.ID))
	out = &model.EnrichmentOutcome{LeadID: lead.ID, Attempts: []model.AttemptRecord{}}

	defer func() {
		if r := recover(); r != nil {
			log.Error("waterfall: provider panicked", zap.Any("panic", r), zap.Int("attempts", len(out.Attempts)))
			err = eris.Errorf("waterfall: panic: %v", r)
		}
	}()

	if lead.ExistingPhone != "" {
		p := lead.ExistingPhone
		out.Attempts = append(out.Attempts, model.AttemptRecord{
			Provider: model.ProviderExisting,
			Success:  true,
			Phone:    &p,
		})
		out.Succeed(model.ProviderExisting, p)
		log.Debug("waterfall: lead already has a phone")
		return out, nil
	}

	for _, spec := range o.specs {
		if err = ctx.Err(); err != nil {
			return out, eris.Wrap(err, "waterfall: interrupted")
		}

		rec := provider.Invoke(ctx, spec, lead)
		if !rec.Success {
			out.Attempts = append(out.Attempts, rec)
			continue
		}

		saved := o.saver.Save(ctx, lead.ID, *rec.Phone)
		if !saved.Success {
			rec.Success = false
			rec.Error = ErrNotSaved
			out.Attempts = append(out.Attempts, rec, model.AttemptRecord{
				Provider: spec.Name,
				Error:    saved.Error,
			})
			log.Warn("waterfall: phone not saved, continuing",
				zap.String("provider", spec.Name),
				zap.String("error", saved.Error),
			)
			continue
		}

		out.Attempts = append(out.Attempts, rec)
		out.Succeed(spec.Name, *rec.Phone)
		log.Info("waterfall: phone enriched",
			zap.String("provider", spec.Name),
			zap.Int("attempts", len(out.Attempts)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return out, nil
	}

	if err = ctx.Err(); err != nil {
		return out, eris.Wrap(err, "waterfall: interrupted")
	}
	log.Info("waterfall: exhausted",
		zap.Int("attempts", len(out.Attempts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
