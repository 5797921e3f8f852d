// Package app wires the configured adapters into a forecast pipeline. It is
// shared by the service and the Temporal worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/checkpoint"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/kp-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/swpc"
	"github.com/couchcryptid/kp-forecast-etl/internal/config"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/couchcryptid/kp-forecast-etl/internal/pipeline"
)

// App holds the pipeline and the resources it must release on shutdown.
type App struct {
	Pipeline *pipeline.Pipeline
	closers  []func() error
}

// New builds the pipeline from cfg. Optional stages are enabled only when
// configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}

	source := swpc.NewClient(swpc.Options{
		URL:        cfg.SourceURL,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.FetchMaxRetries,
		Backoff:    cfg.FetchBackoff,
		MaxBackoff: cfg.FetchMaxBackoff,
		RateLimit:  cfg.FetchRateLimit,
	}, logger, metrics)

	var opts []pipeline.Option

	uploader, err := newUploader(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	if uploader != nil {
		opts = append(opts, pipeline.WithUploader(uploader))
		logger.Info("object store upload enabled", "backend", cfg.UploadBackend, "bucket", cfg.UploadBucket, "gzip", cfg.UploadGzip)
	} else {
		logger.Info("object store upload disabled")
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		a.closers = append(a.closers, writer.Close)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.CheckpointEnabled {
		store, err := checkpoint.Open(cfg.CheckpointDir)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		opts = append(opts, pipeline.WithCheckpoints(store))
		logger.Info("checkpointing enabled", "dir", cfg.CheckpointDir, "in_memory", cfg.CheckpointDir == "")
	}

	a.Pipeline = pipeline.New(source, csvfile.NewWriter(cfg.RawDataDir), pipeline.Options{
		PollInterval: cfg.PollInterval,
		RawDataDir:   cfg.RawDataDir,
		UploadPrefix: cfg.UploadPrefix,
	}, logger, metrics, opts...)
	return a, nil
}

// Close releases every opened resource, returning the joined errors.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Uploader, error) {
	switch cfg.UploadBackend {
	case config.UploadGCS:
		return objectstore.NewGCSUploader(ctx, objectstore.GCSOptions{
			Bucket:          cfg.UploadBucket,
			Endpoint:        cfg.GCSEndpoint,
			CredentialsFile: cfg.GCSCredentialsFile,
			Gzip:            cfg.UploadGzip,
		}, logger, metrics)
	case config.UploadS3:
		return objectstore.NewS3Uploader(objectstore.S3Options{
			Bucket:    cfg.UploadBucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			Gzip:      cfg.UploadGzip,
		}, logger, metrics)
	case config.UploadNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}
