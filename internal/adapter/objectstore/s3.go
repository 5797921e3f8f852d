package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the S3-compatible uploader.
type S3Options struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Gzip      bool
}

// S3Uploader writes objects to any S3-compatible store.
type S3Uploader struct {
	client  *minio.Client
	bucket  string
	gzip    bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader creates an uploader for the configured bucket. Endpoint may
// be a bare host:port or a URL; an https scheme forces TLS.
func NewS3Uploader(opts S3Options, logger *slog.Logger, metrics *observability.Metrics) (*S3Uploader, error) {
	endpoint := opts.Endpoint
	useSSL := opts.UseSSL
	if u, err := url.Parse(opts.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: useSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Uploader{
		client:  client,
		bucket:  opts.Bucket,
		gzip:    opts.Gzip,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Upload stores the object unless the key already exists. The put carries
// If-None-Match: * so the store rejects it atomically when the key is taken.
func (u *S3Uploader) Upload(ctx context.Context, key, localPath string) (string, error) {
	p, err := preparePayload(key, localPath, u.gzip)
	if err != nil {
		return "", err
	}
	uri := fmt.Sprintf("s3://%s/%s", u.bucket, p.key)

	opts := minio.PutObjectOptions{
		ContentType:     p.contentType,
		ContentEncoding: p.contentEncoding,
	}
	opts.SetMatchETagExcept("*")

	_, err = u.client.PutObject(ctx, u.bucket, p.key, p.reader(), int64(len(p.body)), opts)
	if err != nil {
		if isPreconditionFailed(err) {
			u.metrics.Uploads.WithLabelValues("s3", "exists").Inc()
			return "", fmt.Errorf("%w: %s", ErrObjectExists, uri)
		}
		u.metrics.Uploads.WithLabelValues("s3", "error").Inc()
		return "", fmt.Errorf("put object %s: %w", uri, err)
	}

	u.metrics.Uploads.WithLabelValues("s3", "success").Inc()
	u.logger.Info("uploaded series file", "uri", uri, "bytes", len(p.body))
	return uri, nil
}

func isPreconditionFailed(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusPreconditionFailed || resp.Code == minio.PreconditionFailed
}
