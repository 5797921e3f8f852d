package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSOptions configures the Cloud Storage uploader.
type GCSOptions struct {
	Bucket          string
	Endpoint        string // optional, e.g. a local emulator
	CredentialsFile string // optional, application default credentials otherwise
	Gzip            bool
}

// GCSUploader writes objects through the Cloud Storage JSON API.
type GCSUploader struct {
	svc     *storage.Service
	bucket  string
	gzip    bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

var _ Uploader = (*GCSUploader)(nil)

// NewGCSUploader creates an uploader for the configured bucket.
func NewGCSUploader(ctx context.Context, opts GCSOptions, logger *slog.Logger, metrics *observability.Metrics) (*GCSUploader, error) {
	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.Endpoint != "":
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}

	svc, err := storage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSUploader{
		svc:     svc,
		bucket:  opts.Bucket,
		gzip:    opts.Gzip,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Upload inserts the object only if no live generation exists for the key.
func (u *GCSUploader) Upload(ctx context.Context, key, localPath string) (string, error) {
	p, err := preparePayload(key, localPath, u.gzip)
	if err != nil {
		return "", err
	}

	obj := &storage.Object{
		Name:            p.key,
		ContentType:     p.contentType,
		ContentEncoding: p.contentEncoding,
	}
	_, err = u.svc.Objects.Insert(u.bucket, obj).
		Media(p.reader(), googleapi.ContentType(p.contentType)).
		IfGenerationMatch(0).
		Context(ctx).
		Do()

	uri := fmt.Sprintf("gs://%s/%s", u.bucket, p.key)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			u.metrics.Uploads.WithLabelValues("gcs", "exists").Inc()
			return "", fmt.Errorf("%w: %s", ErrObjectExists, uri)
		}
		u.metrics.Uploads.WithLabelValues("gcs", "error").Inc()
		return "", fmt.Errorf("insert object %s: %w", uri, err)
	}

	u.metrics.Uploads.WithLabelValues("gcs", "success").Inc()
	u.logger.Info("uploaded series file", "uri", uri, "bytes", len(p.body))
	return uri, nil
}
