// Package pipeline orchestrates one forecast run: fetch the SWPC document,
// parse it into a series, save it locally, upload it and publish it.
package pipeline

import (
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
)

// Run is the state threaded through the stages of a single forecast run.
// Each stage takes the Run produced by the previous one and returns it with
// its own fields filled in.
type Run struct {
	ID         string                `json:"id"`
	StartedAt  time.Time             `json:"started_at"`
	RawDataDir string                `json:"raw_data_dir"`
	FileName   string                `json:"file_name"`
	LocalPath  string                `json:"local_path,omitempty"`
	ObjectKey  string                `json:"object_key"`
	ObjectURI  string                `json:"object_uri,omitempty"`
	IssuedAt   time.Time             `json:"issued_at"`
	Digest     string                `json:"digest,omitempty"`
	Series     domain.ForecastSeries `json:"series"`

	// Skipped is set when the series matches an already delivered digest.
	Skipped bool `json:"skipped"`
}
