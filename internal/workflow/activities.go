// Package workflow runs the forecast pipeline stages as Temporal activities,
// so each stage is retried and recorded independently.
package workflow

import (
	"context"
	"errors"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
	"github.com/couchcryptid/kp-forecast-etl/internal/pipeline"
	"go.temporal.io/sdk/temporal"
)

// ErrTypeMalformedInput is the application error type of a rejected
// forecast document. Activities failing with it are never retried.
const ErrTypeMalformedInput = "MalformedInput"

// Stages is the subset of the pipeline that activities delegate to.
type Stages interface {
	Prepare(ctx context.Context) (pipeline.Run, error)
	Extract(ctx context.Context, run pipeline.Run) (pipeline.Run, error)
	Save(ctx context.Context, run pipeline.Run) (pipeline.Run, error)
	Upload(ctx context.Context, run pipeline.Run) (pipeline.Run, error)
	Publish(ctx context.Context, run pipeline.Run) (pipeline.Run, error)
	Checkpoint(ctx context.Context, run pipeline.Run) (pipeline.Run, error)
}

// Activities exposes each pipeline stage as a Temporal activity.
type Activities struct {
	stages Stages
}

// NewActivities creates activities backed by the given stages.
func NewActivities(stages Stages) *Activities {
	return &Activities{stages: stages}
}

func (a *Activities) Prepare(ctx context.Context) (pipeline.Run, error) {
	return a.stages.Prepare(ctx)
}

// Extract fetches and parses the document. A malformed document fails with a
// non-retryable error since refetching the same text cannot fix it.
func (a *Activities) Extract(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
	out, err := a.stages.Extract(ctx, run)
	if err != nil && errors.Is(err, domain.ErrMalformedInput) {
		return out, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMalformedInput, err)
	}
	return out, err
}

func (a *Activities) Save(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
	return a.stages.Save(ctx, run)
}

func (a *Activities) Upload(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
	return a.stages.Upload(ctx, run)
}

func (a *Activities) Publish(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
	return a.stages.Publish(ctx, run)
}

func (a *Activities) Checkpoint(ctx context.Context, run pipeline.Run) (pipeline.Run, error) {
	return a.stages.Checkpoint(ctx, run)
}
