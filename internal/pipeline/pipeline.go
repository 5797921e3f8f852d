package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Source retrieves the forecast document.
type Source interface {
	Probe(ctx context.Context) error
	Fetch(ctx context.Context) (domain.RawTable, error)
}

// SeriesWriter persists a parsed series to a local file.
type SeriesWriter interface {
	FileName(startedAt time.Time) string
	Save(series domain.ForecastSeries, fileName string) (string, error)
}

// Uploader copies a local file to object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
}

// Publisher emits the series entries to downstream consumers and returns how
// many messages were written.
type Publisher interface {
	Publish(ctx context.Context, runID string, issuedAt time.Time, series domain.ForecastSeries) (int, error)
}

// Checkpointer remembers which series digests were already delivered.
type Checkpointer interface {
	Seen(digest string) (bool, error)
	Mark(digest, runID string) error
}

// Options holds the scheduling and layout settings of the pipeline.
type Options struct {
	PollInterval time.Duration
	RawDataDir   string
	UploadPrefix string
}

// Option configures an optional collaborator.
type Option func(*Pipeline)

// WithUploader enables the upload stage.
func WithUploader(u Uploader) Option { return func(p *Pipeline) { p.uploader = u } }

// WithPublisher enables the publish stage.
func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

// WithCheckpoints enables skipping of unchanged forecasts.
func WithCheckpoints(c Checkpointer) Option { return func(p *Pipeline) { p.checkpoints = c } }

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// Pipeline runs fetch, parse, save, upload and publish for the forecast, once
// or on a fixed schedule.
type Pipeline struct {
	source      Source
	writer      SeriesWriter
	uploader    Uploader
	publisher   Publisher
	checkpoints Checkpointer
	opts        Options
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	latest      atomic.Pointer[domain.ForecastSeries]
}

// New creates a Pipeline. Upload, publish and checkpointing are skipped
// unless the matching Option supplies a collaborator.
func New(src Source, w SeriesWriter, opts Options, logger *slog.Logger, metrics *observability.Metrics, options ...Option) *Pipeline {
	p := &Pipeline{
		source:  src,
		writer:  w,
		opts:    opts,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LatestForecast returns the series of the most recent successful run.
func (p *Pipeline) LatestForecast() (domain.ForecastSeries, bool) {
	series := p.latest.Load()
	if series == nil {
		return domain.ForecastSeries{}, false
	}
	return *series, true
}

// Run executes a run immediately and then on every poll interval until the
// context is cancelled. Failed runs are logged and do not stop the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "poll_interval", p.opts.PollInterval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("forecast run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce sequences every stage. The first stage error fails the run and no
// later stage executes.
func (p *Pipeline) RunOnce(ctx context.Context) (Run, error) {
	start := p.clock.Now()

	run, err := p.runStages(ctx)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues("failed").Inc()
		return run, err
	}

	outcome := "success"
	if run.Skipped {
		outcome = "unchanged"
	}
	p.metrics.Runs.WithLabelValues(outcome).Inc()
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.ready.Store(true)
	p.latest.Store(&run.Series)

	p.logger.Info("forecast run complete",
		"run_id", run.ID,
		"outcome", outcome,
		"entries", run.Series.Len(),
		"file", run.LocalPath,
		"object", run.ObjectURI,
	)
	return run, nil
}

func (p *Pipeline) runStages(ctx context.Context) (Run, error) {
	run, err := p.Prepare(ctx)
	if err != nil {
		return run, err
	}

	stages := []struct {
		name string
		fn   func(context.Context, Run) (Run, error)
	}{
		{"extract", p.Extract},
		{"save", p.Save},
		{"upload", p.Upload},
		{"publish", p.Publish},
		{"checkpoint", p.Checkpoint},
	}
	for _, s := range stages {
		run, err = s.fn(ctx, run)
		if err != nil {
			return run, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return run, nil
}

// Prepare assigns the run identity, start time and file layout.
func (p *Pipeline) Prepare(_ context.Context) (Run, error) {
	started := p.clock.Now().UTC()
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  started,
		RawDataDir: p.opts.RawDataDir,
		FileName:   p.writer.FileName(started),
	}
	run.ObjectKey = objectKey(p.opts.UploadPrefix, run.FileName)

	p.logger.Debug("forecast run prepared", "run_id", run.ID, "file", run.FileName)
	return run, nil
}

// Extract probes and fetches the document, parses it, and marks the run
// skipped when the series digest was already delivered.
func (p *Pipeline) Extract(ctx context.Context, run Run) (Run, error) {
	if err := p.source.Probe(ctx); err != nil {
		return run, err
	}
	raw, err := p.source.Fetch(ctx)
	if err != nil {
		return run, err
	}

	if issued, ok := domain.ParseIssued(raw); ok {
		run.IssuedAt = issued
	}

	series, err := domain.ParseForecast(raw, run.StartedAt)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedInput) {
			p.metrics.ParseErrors.Inc()
		}
		return run, err
	}
	run.Series = series
	run.Digest = domain.Digest(series)
	p.metrics.EntriesProduced.Add(float64(series.Len()))

	if p.checkpoints != nil {
		seen, err := p.checkpoints.Seen(run.Digest)
		if err != nil {
			return run, err
		}
		if seen {
			run.Skipped = true
			p.logger.Info("forecast unchanged, skipping delivery", "run_id", run.ID, "digest", run.Digest)
		}
	}
	return run, nil
}

// Save writes the series file under the raw data directory.
func (p *Pipeline) Save(_ context.Context, run Run) (Run, error) {
	if run.Skipped {
		return run, nil
	}
	localPath, err := p.writer.Save(run.Series, run.FileName)
	if err != nil {
		return run, err
	}
	run.LocalPath = localPath
	return run, nil
}

// Upload copies the saved file to object storage.
func (p *Pipeline) Upload(ctx context.Context, run Run) (Run, error) {
	if run.Skipped || p.uploader == nil {
		return run, nil
	}
	uri, err := p.uploader.Upload(ctx, run.ObjectKey, run.LocalPath)
	if err != nil {
		return run, err
	}
	run.ObjectURI = uri
	return run, nil
}

// Publish emits the series entries.
func (p *Pipeline) Publish(ctx context.Context, run Run) (Run, error) {
	if run.Skipped || p.publisher == nil {
		return run, nil
	}
	n, err := p.publisher.Publish(ctx, run.ID, run.IssuedAt, run.Series)
	if err != nil {
		return run, err
	}
	p.metrics.MessagesProduced.Add(float64(n))
	return run, nil
}

// Checkpoint records the delivered series digest.
func (p *Pipeline) Checkpoint(_ context.Context, run Run) (Run, error) {
	if run.Skipped || p.checkpoints == nil {
		return run, nil
	}
	if err := p.checkpoints.Mark(run.Digest, run.ID); err != nil {
		return run, err
	}
	return run, nil
}

func objectKey(prefix, fileName string) string {
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}
