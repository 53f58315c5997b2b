package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

// ErrNoPhone is the attempt error recorded when a provider answered without a usable number.
const ErrNoPhone = "no phone found"

// Spec binds an adapter to its timeout, retry and rate policy. A slice of
// Specs is the waterfall order.
type Spec struct {
	Name    string
	Adapter Adapter
	// RequiredFields overrides Adapter.RequiredFields when non-nil.
	RequiredFields []model.FieldName
	// Timeout bounds the whole retried sequence. Zero means no bound.
	Timeout time.Duration
	// AttemptTimeout bounds a single call. Defaults to Timeout.
	AttemptTimeout time.Duration
	Retry          resilience.RetryConfig

	// Limiter and Breaker are shared across leads; nil disables them.
	Limiter *rate.Limiter
	Breaker *resilience.CircuitBreaker
}

// Required returns the fields a lead must carry before the provider is called.
func (s Spec) Required() []model.FieldName {
	if s.RequiredFields != nil {
		return s.RequiredFields
	}
	if s.Adapter == nil {
		return nil
	}
	return s.Adapter.RequiredFields()
}

// NewLimiter builds a limiter for rps requests per second, or nil when rps <= 0.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Invoke runs spec's adapter for lead under its policy and reports the
// outcome as data. It never returns an error: skipped, failed and empty
// lookups are all attempt records.
func Invoke(ctx context.Context, spec Spec, lead model.LeadRef) model.AttemptRecord {
	start := time.Now()
	rec := model.AttemptRecord{Provider: spec.Name}
	log := zap.L().With(zap.Int64("lead_id", lead.ID), zap.String("provider", spec.Name))

	if field, missing := lead.Missing(spec.Required()); missing {
		rec.Skipped = true
		rec.Error = fmt.Sprintf("missing required field: %s", field)
		log.Debug("provider: skipped", zap.String("field", string(field)))
		return rec
	}
	if spec.Adapter == nil {
		rec.Error = fmt.Sprintf("provider %s is not configured", spec.Name)
		return rec
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	retry := spec.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(spec.Name, "lookup")
	}

	res, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (Result, error) {
		return callOnce(ctx, spec, lead, &rec.Calls)
	})
	rec.ElapsedMS = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		rec.Error = err.Error()
		log.Info("provider: lookup failed",
			zap.Int("calls", rec.Calls),
			zap.String("class", resilience.Classify(err)),
			zap.Duration("elapsed", rec.Elapsed()),
			zap.Error(err),
		)
	case res.Phone == "":
		rec.Error = ErrNoPhone
		log.Info("provider: no phone", zap.Int("calls", rec.Calls), zap.Duration("elapsed", rec.Elapsed()))
	default:
		p := res.Phone
		rec.Success = true
		rec.Phone = &p
		log.Info("provider: phone found", zap.Int("calls", rec.Calls), zap.Duration("elapsed", rec.Elapsed()))
	}
	return rec
}

// Call performs a single rate-limited, breaker-guarded lookup bounded by the
// attempt timeout. Retrying is left to the caller.
func Call(ctx context.Context, spec Spec, lead model.LeadRef) (Result, error) {
	if spec.Adapter == nil {
		return Result{}, resilience.NewPermanentError(fmt.Errorf("provider %s is not configured", spec.Name), 0)
	}
	var calls int
	return callOnce(ctx, spec, lead, &calls)
}

func callOnce(ctx context.Context, spec Spec, lead model.LeadRef, calls *int) (Result, error) {
	if spec.Limiter != nil {
		if err := spec.Limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	attemptTimeout := spec.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = spec.Timeout
	}

	var res Result
	do := func(ctx context.Context) error {
		*calls++
		if attemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, attemptTimeout)
			defer cancel()
		}
		var err error
		res, err = spec.Adapter.Lookup(ctx, lead)
		return err
	}

	if spec.Breaker != nil {
		return res, spec.Breaker.Execute(ctx, do)
	}
	return res, do(ctx)
}
