// Command worker runs the forecast pipeline as a Temporal workflow. It
// registers ForecastWorkflow and its activities on the configured task queue;
// with -trigger it instead starts one execution and waits for the result.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/app"
	"github.com/couchcryptid/kp-forecast-etl/internal/config"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/couchcryptid/kp-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/kp-forecast-etl/internal/workflow"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
)

func main() {
	os.Exit(run())
}

func run() int {
	trigger := flag.Bool("trigger", false, "start one forecast workflow and wait for it to finish")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewLogger(cfg)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		return 1
	}
	defer c.Close()

	if *trigger {
		return triggerWorkflow(c, cfg, logger)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("resource close error", "error", err)
		}
	}()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(workflow.ForecastWorkflow, temporalworkflow.RegisterOptions{
		Name: workflow.ForecastWorkflowName,
	})
	w.RegisterActivity(workflow.NewActivities(a.Pipeline))

	logger.Info("temporal worker started", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker error", "error", err)
		return 1
	}
	logger.Info("worker stopped")
	return 0
}

func triggerWorkflow(c client.Client, cfg *config.Config, logger *slog.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "kp-forecast-" + uuid.NewString(),
		TaskQueue: cfg.TemporalTaskQueue,
	}, workflow.ForecastWorkflowName)
	if err != nil {
		logger.Error("failed to start workflow", "error", err)
		return 1
	}
	logger.Info("workflow started", "workflow_id", we.GetID(), "run_id", we.GetRunID())

	var run pipeline.Run
	if err := we.Get(ctx, &run); err != nil {
		if workflow.IsMalformedInput(err) {
			logger.Error("forecast document rejected", "workflow_id", we.GetID(), "error", err)
			return 2
		}
		logger.Error("workflow failed", "workflow_id", we.GetID(), "error", err)
		return 1
	}
	logger.Info("workflow complete",
		"workflow_id", we.GetID(),
		"forecast_run_id", run.ID,
		"skipped", run.Skipped,
		"entries", run.Series.Len(),
		"object", run.ObjectURI,
	)
	return 0
}
