// Package workflow runs the phone waterfall as a durable Temporal workflow.
// Each provider lookup and the final save are activities, so retries, timeouts
// and in-flight deduplication are owned by the Temporal server.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/waterfall"
	"github.com/sells-group/lead-enrich/internal/waterfall/provider"
)

// Registered names.
const (
	WorkflowName        = "PhoneEnrichment"
	ActivityLookupPhone = "LookupPhone"
	ActivitySavePhone   = "SavePhone"

	// QueryProgress returns the outcome recorded so far by a running workflow.
	QueryProgress = "progress"

	DefaultTaskQueue = "phone-enrichment"

	// errTypePermanent marks lookup failures Temporal must not retry.
	errTypePermanent = "PermanentError"
	errTypeTransient = "TransientError"
)

// ProviderPlan is the serializable form of a provider.Spec.
type ProviderPlan struct {
	Name           string                 `json:"name"`
	RequiredFields []model.FieldName      `json:"requiredFields"`
	Timeout        time.Duration          `json:"timeout"`
	AttemptTimeout time.Duration          `json:"attemptTimeout"`
	Retry          resilience.RetryConfig `json:"retry"`
}

// PlansFrom converts specs into workflow plans, keeping their order.
func PlansFrom(specs []provider.Spec) []ProviderPlan {
	plans := make([]ProviderPlan, len(specs))
	for i, s := range specs {
		plans[i] = ProviderPlan{
			Name:           s.Name,
			RequiredFields: s.Required(),
			Timeout:        s.Timeout,
			AttemptTimeout: s.AttemptTimeout,
			Retry:          s.Retry.WithDefaults(),
		}
	}
	return plans
}

// Input is the PhoneEnrichment workflow argument.
type Input struct {
	Lead      model.LeadRef        `json:"lead"`
	Providers []ProviderPlan       `json:"providers"`
	Save      waterfall.SavePolicy `json:"save"`
}

// LookupInput is the LookupPhone activity argument.
type LookupInput struct {
	Provider string        `json:"provider"`
	Lead     model.LeadRef `json:"lead"`
}

// LookupOutput is the LookupPhone activity result. An empty Phone means the
// provider answered without a number. A failed lookup carries it as the error
// details so the workflow still learns the attempt count.
type LookupOutput struct {
	Phone   string `json:"phone"`
	Attempt int32  `json:"attempt"`
}

// SaveInput is the SavePhone activity argument.
type SaveInput struct {
	LeadID int64  `json:"leadId"`
	Phone  string `json:"phone"`
}

// PhoneEnrichment tries each planned provider in order, saving the first
// number found. Skips and failures are recorded as attempts; the workflow
// itself fails only when it is cancelled or times out.
func PhoneEnrichment(ctx workflow.Context, in Input) (*model.EnrichmentOutcome, error) {
	log := workflow.GetLogger(ctx)
	lead := in.Lead
	out := &model.EnrichmentOutcome{LeadID: lead.ID, Attempts: []model.AttemptRecord{}}

	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*model.EnrichmentOutcome, error) {
		return out, nil
	}); err != nil {
		return nil, err
	}

	if lead.ExistingPhone != "" {
		p := lead.ExistingPhone
		out.Attempts = append(out.Attempts, model.AttemptRecord{Provider: model.ProviderExisting, Success: true, Phone: &p})
		out.Succeed(model.ProviderExisting, p)
		return out, nil
	}

	for _, plan := range in.Providers {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rec := model.AttemptRecord{Provider: plan.Name}
		if field, missing := lead.Missing(plan.RequiredFields); missing {
			rec.Skipped = true
			rec.Error = fmt.Sprintf("missing required field: %s", field)
			out.Attempts = append(out.Attempts, rec)
			continue
		}

		start := workflow.Now(ctx)
		var res LookupOutput
		err := workflow.ExecuteActivity(
			workflow.WithActivityOptions(ctx, lookupOptions(plan)),
			ActivityLookupPhone,
			LookupInput{Provider: plan.Name, Lead: lead},
		).Get(ctx, &res)
		rec.ElapsedMS = workflow.Now(ctx).Sub(start).Milliseconds()
		rec.Calls = int(res.Attempt)

		switch {
		case err != nil:
			rec.Calls = failedAttempts(err)
			rec.Error = activityMessage(err)
			out.Attempts = append(out.Attempts, rec)
			log.Info("lookup failed", "lead_id", lead.ID, "provider", plan.Name, "error", rec.Error)
			continue
		case res.Phone == "":
			rec.Error = provider.ErrNoPhone
			out.Attempts = append(out.Attempts, rec)
			continue
		}

		var saved waterfall.SaveResult
		err = workflow.ExecuteActivity(
			workflow.WithActivityOptions(ctx, saveOptions(in.Save)),
			ActivitySavePhone,
			SaveInput{LeadID: lead.ID, Phone: res.Phone},
		).Get(ctx, &saved)
		if err != nil {
			saved = waterfall.SaveResult{Error: fmt.Sprintf("save failed: %s", activityMessage(err))}
		}
		if !saved.Success {
			rec.Error = waterfall.ErrNotSaved
			out.Attempts = append(out.Attempts, rec, model.AttemptRecord{Provider: plan.Name, Error: saved.Error})
			log.Warn("phone not saved", "lead_id", lead.ID, "provider", plan.Name, "error", saved.Error)
			continue
		}

		p := res.Phone
		rec.Success = true
		rec.Phone = &p
		out.Attempts = append(out.Attempts, rec)
		out.Succeed(plan.Name, p)
		log.Info("phone enriched", "lead_id", lead.ID, "provider", plan.Name)
		return out, nil
	}

	return out, nil
}

func lookupOptions(plan ProviderPlan) workflow.ActivityOptions {
	opts := workflow.ActivityOptions{
		ScheduleToCloseTimeout: plan.Timeout,
		StartToCloseTimeout:    plan.AttemptTimeout,
		RetryPolicy:            retryPolicy(plan.Retry),
	}
	if opts.StartToCloseTimeout <= 0 {
		opts.StartToCloseTimeout = plan.Timeout
	}
	if opts.StartToCloseTimeout <= 0 {
		opts.StartToCloseTimeout = time.Minute
	}
	return opts
}

func saveOptions(p waterfall.SavePolicy) workflow.ActivityOptions {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         retryPolicy(p.Retry),
	}
}

func retryPolicy(r resilience.RetryConfig) *temporal.RetryPolicy {
	r = r.WithDefaults()
	return &temporal.RetryPolicy{
		InitialInterval:        r.InitialBackoff,
		BackoffCoefficient:     r.Multiplier,
		MaximumInterval:        r.MaxBackoff,
		MaximumAttempts:        int32(r.MaxAttempts),
		NonRetryableErrorTypes: []string{errTypePermanent},
	}
}

// failedAttempts reads the attempt count a failed LookupPhone attached to its
// error. Timeouts carry no details and report zero.
func failedAttempts(err error) int {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return 0
	}
	var d LookupOutput
	if appErr.Details(&d) != nil {
		return 0
	}
	return int(d.Attempt)
}

// activityMessage strips Temporal's activity envelope from err.
func activityMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "timeout: " + timeoutErr.Error()
	}
	return err.Error()
}
