package workflow

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/waterfall"
	"github.com/sells-group/lead-enrich/internal/waterfall/provider"
)

// Activities performs the side effects of PhoneEnrichment. Lookups share the
// rate limiters and circuit breakers of the in-process engine.
type Activities struct {
	specs map[string]provider.Spec
	saver waterfall.Saver
}

// NewActivities indexes specs by provider name.
func NewActivities(specs []provider.Spec, saver waterfall.Saver) *Activities {
	m := make(map[string]provider.Spec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return &Activities{specs: m, saver: saver}
}

// LookupPhone makes one provider call. Transient failures are returned as
// retryable errors; everything else is non-retryable. Both carry the attempt
// number as details.
func (a *Activities) LookupPhone(ctx context.Context, in LookupInput) (LookupOutput, error) {
	var out LookupOutput
	if activity.IsActivity(ctx) {
		out.Attempt = activity.GetInfo(ctx).Attempt
	}

	spec, ok := a.specs[in.Provider]
	if !ok {
		msg := fmt.Sprintf("provider %s is not configured", in.Provider)
		return out, temporal.NewNonRetryableApplicationError(msg, errTypePermanent, nil, out)
	}

	res, err := provider.Call(ctx, spec, in.Lead)
	if err != nil {
		if resilience.IsTransient(err) {
			return out, temporal.NewApplicationErrorWithCause(err.Error(), errTypeTransient, err, out)
		}
		return out, temporal.NewNonRetryableApplicationError(err.Error(), errTypePermanent, err, out)
	}
	out.Phone = res.Phone
	return out, nil
}

// SavePhone persists the number. Failures are reported in the result rather
// than as errors so the workflow can move on to the next provider.
func (a *Activities) SavePhone(ctx context.Context, in SaveInput) (waterfall.SaveResult, error) {
	return a.saver.Save(ctx, in.LeadID, in.Phone), nil
}
