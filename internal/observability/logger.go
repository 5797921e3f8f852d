package observability

import (
	"log/slog"

	"github.com/couchcryptid/kp-forecast-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// ServiceName tags every log line written by the process logger.
const ServiceName = "kp-forecast-etl"

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT. The
// shared logger also becomes the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", ServiceName)
}
