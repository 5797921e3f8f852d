package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultSourceURL is the SWPC 3-day forecast text product.
const DefaultSourceURL = "https://services.swpc.noaa.gov/text/3-day-forecast.txt"

// Upload backends.
const (
	UploadNone = "none"
	UploadGCS  = "gcs"
	UploadS3   = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceURL       string
	PollInterval    time.Duration
	RunOnce         bool
	FetchTimeout    time.Duration
	FetchMaxRetries int
	FetchBackoff    time.Duration
	FetchMaxBackoff time.Duration
	FetchRateLimit  float64

	RawDataDir string

	// Object store upload configuration.
	UploadBackend string
	UploadBucket  string
	UploadPrefix  string
	UploadGzip    bool

	GCSEndpoint        string
	GCSCredentialsFile string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	CheckpointEnabled bool
	CheckpointDir     string

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchBackoff, err := parseDuration("FETCH_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}
	fetchMaxBackoff, err := parseDuration("FETCH_MAX_BACKOFF", "30s")
	if err != nil {
		return nil, err
	}
	fetchMaxRetries, err := parseNonNegativeInt("FETCH_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	fetchRateLimit, err := parsePositiveFloat("FETCH_RATE_LIMIT", 1)
	if err != nil {
		return nil, err
	}

	var runOnce, uploadGzip, s3UseSSL, kafkaEnabled, checkpointEnabled bool
	for _, b := range []struct {
		key string
		def bool
		dst *bool
	}{
		{"RUN_ONCE", false, &runOnce},
		{"UPLOAD_GZIP", false, &uploadGzip},
		{"S3_USE_SSL", true, &s3UseSSL},
		{"KAFKA_ENABLED", false, &kafkaEnabled},
		{"CHECKPOINT_ENABLED", false, &checkpointEnabled},
	} {
		v, err := parseBool(b.key, b.def)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	cfg := &Config{
		SourceURL:       sharedcfg.EnvOrDefault("SOURCE_URL", DefaultSourceURL),
		PollInterval:    pollInterval,
		RunOnce:         runOnce,
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: fetchMaxRetries,
		FetchBackoff:    fetchBackoff,
		FetchMaxBackoff: fetchMaxBackoff,
		FetchRateLimit:  fetchRateLimit,

		RawDataDir: sharedcfg.EnvOrDefault("RAW_DATA_DIR", "./raw_data"),

		UploadBackend: strings.ToLower(sharedcfg.EnvOrDefault("UPLOAD_BACKEND", UploadNone)),
		UploadBucket:  os.Getenv("UPLOAD_BUCKET"),
		UploadPrefix:  strings.Trim(os.Getenv("UPLOAD_PREFIX"), "/"),
		UploadGzip:    uploadGzip,

		GCSEndpoint:        os.Getenv("GCS_ENDPOINT"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Region:    os.Getenv("S3_REGION"),
		S3UseSSL:    s3UseSSL,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "kp-forecast"),

		CheckpointEnabled: checkpointEnabled,
		CheckpointDir:     os.Getenv("CHECKPOINT_DIR"),

		TemporalAddress:   sharedcfg.EnvOrDefault("TEMPORAL_ADDRESS", "127.0.0.1:7233"),
		TemporalNamespace: sharedcfg.EnvOrDefault("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: sharedcfg.EnvOrDefault("TEMPORAL_TASK_QUEUE", "kp-forecast"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceURL == "" {
		return errors.New("SOURCE_URL is required")
	}
	if c.FetchMaxBackoff < c.FetchBackoff {
		return errors.New("FETCH_MAX_BACKOFF must not be smaller than FETCH_BACKOFF")
	}

	switch c.UploadBackend {
	case UploadNone:
	case UploadGCS:
		if c.UploadBucket == "" {
			return errors.New("UPLOAD_BUCKET is required when UPLOAD_BACKEND is set")
		}
	case UploadS3:
		if c.UploadBucket == "" {
			return errors.New("UPLOAD_BUCKET is required when UPLOAD_BACKEND is set")
		}
		if c.S3Endpoint == "" {
			return errors.New("S3_ENDPOINT is required for the s3 backend")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid UPLOAD_BACKEND %q", c.UploadBackend)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q is not a boolean", key, s)
	}
	return v, nil
}
