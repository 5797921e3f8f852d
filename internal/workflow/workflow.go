package workflow

import (
	"errors"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/pipeline"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ForecastWorkflowName is the registered workflow type name.
const ForecastWorkflowName = "forecastWorkflow"

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        30 * time.Second,
		MaximumAttempts:        3,
		NonRetryableErrorTypes: []string{ErrTypeMalformedInput},
	},
}

// ForecastWorkflow chains the forecast stages as activities and returns the
// final run state. A skipped run stops after Extract. A failing activity's
// error is returned unwrapped so its application error type reaches the
// caller.
func ForecastWorkflow(ctx workflow.Context) (pipeline.Run, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	var a *Activities
	var run pipeline.Run
	if err := workflow.ExecuteActivity(ctx, a.Prepare).Get(ctx, &run); err != nil {
		logger.Error("forecast stage failed", "stage", "prepare", "error", err)
		return run, err
	}

	stages := []struct {
		name string
		fn   any
	}{
		{"extract", a.Extract},
		{"save", a.Save},
		{"upload", a.Upload},
		{"publish", a.Publish},
		{"checkpoint", a.Checkpoint},
	}
	for _, s := range stages {
		if err := workflow.ExecuteActivity(ctx, s.fn, run).Get(ctx, &run); err != nil {
			logger.Error("forecast stage failed", "stage", s.name, "run_id", run.ID, "error", err)
			return run, err
		}
		if run.Skipped {
			logger.Info("forecast unchanged, skipping delivery", "run_id", run.ID, "digest", run.Digest)
			break
		}
	}

	logger.Info("forecast workflow complete", "run_id", run.ID, "entries", run.Series.Len())
	return run, nil
}

// IsMalformedInput reports whether a workflow or activity error was caused by
// a rejected forecast document.
func IsMalformedInput(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == ErrTypeMalformedInput
}
