package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/idempotency"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/waterfall"
)

const progressQueryTimeout = 5 * time.Second

// ClientConfig locates the Temporal frontend.
type ClientConfig struct {
	HostPort  string
	Namespace string
}

// Dial connects to Temporal, logging through the global zap logger.
func Dial(cfg ClientConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    zapLogger{zap.L().Sugar().With("component", "temporal")},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// Runner starts PhoneEnrichment workflows and waits for their outcome. The
// workflow id is the lead's idempotency key, and an already running workflow
// with that id is joined instead of started again.
type Runner struct {
	client    client.Client
	taskQueue string
	plans     []ProviderPlan
	save      waterfall.SavePolicy
}

// NewRunner creates a Runner that submits to taskQueue.
func NewRunner(c client.Client, taskQueue string, plans []ProviderPlan, save waterfall.SavePolicy) *Runner {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Runner{client: c, taskQueue: taskQueue, plans: plans, save: save}
}

// Enrich runs the durable waterfall for lead. When waiting ends early, for
// example at a batch deadline, the attempts recorded so far come back with the
// error.
func (r *Runner) Enrich(ctx context.Context, lead model.LeadRef) (*model.EnrichmentOutcome, error) {
	opts := client.StartWorkflowOptions{
		ID:                       idempotency.Key(lead.ID),
		TaskQueue:                r.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	run, err := r.client.ExecuteWorkflow(ctx, opts, WorkflowName, Input{
		Lead:      lead,
		Providers: r.plans,
		Save:      r.save,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: start %s", opts.ID)
	}

	zap.L().Debug("workflow: started",
		zap.Int64("lead_id", lead.ID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)

	var out model.EnrichmentOutcome
	if err := run.Get(ctx, &out); err != nil {
		return r.progress(ctx, run), eris.Wrapf(err, "workflow: await %s", opts.ID)
	}
	return &out, nil
}

// progress asks a workflow that could not be awaited for the attempts it has
// recorded so far. It returns nil when the query fails.
func (r *Runner) progress(ctx context.Context, run client.WorkflowRun) *model.EnrichmentOutcome {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressQueryTimeout)
	defer cancel()

	val, err := r.client.QueryWorkflow(qctx, run.GetID(), run.GetRunID(), QueryProgress)
	if err != nil {
		zap.L().Warn("workflow: query progress", zap.String("workflow_id", run.GetID()), zap.Error(err))
		return nil
	}
	var out model.EnrichmentOutcome
	if err := val.Get(&out); err != nil {
		zap.L().Warn("workflow: decode progress", zap.String("workflow_id", run.GetID()), zap.Error(err))
		return nil
	}
	return &out
}

// Register adds the workflow and activities to a worker.
func Register(r worker.Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(PhoneEnrichment, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivity(acts)
}

// NewWorker builds a worker for taskQueue with everything registered.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, acts)
	return w
}

// zapLogger adapts a sugared zap logger to Temporal's key/value logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l zapLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l zapLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l zapLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
