// Package idempotency guarantees at most one in-flight enrichment per lead.
// Callers that arrive while a run is active join it and receive its outcome.
package idempotency

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lead-enrich/internal/model"
)

// Key returns the idempotency key for a lead.
func Key(leadID int64) string {
	return fmt.Sprintf("enrich-phone-%d", leadID)
}

// Func produces an outcome. It may return a partial outcome together with an error.
type Func func(ctx context.Context) (*model.EnrichmentOutcome, error)

// Guard serializes runs across processes.
type Guard interface {
	Run(ctx context.Context, key string, fn Func) (*model.EnrichmentOutcome, error)
}

// Group collapses concurrent runs with the same key within one process, and
// across processes when a Guard is set.
type Group struct {
	sf    singleflight.Group
	guard Guard
}

// NewGroup creates a Group. guard may be nil.
func NewGroup(guard Guard) *Group {
	return &Group{guard: guard}
}

// Do runs fn once per key at a time. shared reports whether the outcome was
// produced for more than one caller. Every caller gets its own copy.
//
// The run uses the context of the caller that started it. That caller waits
// for fn to return even after its context ends, so the partial outcome fn
// reports on cancellation is not lost. A joiner whose own context ends stops
// waiting but does not cancel the run. A panic in fn is returned as an error.
func (g *Group) Do(ctx context.Context, key string, fn Func) (out *model.EnrichmentOutcome, shared bool, err error) {
	started := make(chan struct{})
	ch := g.sf.DoChan(key, func() (v any, err error) {
		close(started)
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("idempotency: run panicked", zap.String("key", key), zap.Any("panic", r))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if g.guard != nil {
			return g.guard.Run(ctx, key, fn)
		}
		return fn(ctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		select {
		case <-started:
			// This caller owns the run, which observes ctx and returns promptly.
			res = <-ch
		default:
			return nil, false, ctx.Err()
		}
	}

	if res.Shared {
		zap.L().Debug("idempotency: joined in-flight run", zap.String("key", key))
	}
	o, _ := res.Val.(*model.EnrichmentOutcome)
	return o.Clone(), res.Shared, res.Err
}
