package objectstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seriesCSV = "date,value\n2024-02-17 00:00:00,1.67\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "20240217T123000Z_kp_raw_data.txt")
	require.NoError(t, os.WriteFile(p, []byte(seriesCSV), 0o600))
	return p
}

func TestPreparePayload(t *testing.T) {
	src := writeSource(t)

	plain, err := preparePayload("k/run.txt", src, false)
	require.NoError(t, err)
	assert.Equal(t, "k/run.txt", plain.key)
	assert.Equal(t, seriesCSV, string(plain.body))
	assert.Empty(t, plain.contentEncoding)

	zipped, err := preparePayload("k/run.txt", src, true)
	require.NoError(t, err)
	assert.Equal(t, "k/run.txt.gz", zipped.key)
	assert.Equal(t, "gzip", zipped.contentEncoding)

	zr, err := gzip.NewReader(bytes.NewReader(zipped.body))
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, seriesCSV, string(data))
}

func TestPreparePayload_MissingFile(t *testing.T) {
	_, err := preparePayload("k", filepath.Join(t.TempDir(), "missing.txt"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read upload source")
}

// fakeGCS records insert requests and answers with the configured status.
type fakeGCS struct {
	mu          sync.Mutex
	status      int
	query       url.Values
	contentType string
	body        string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.query = r.URL.Query()
	f.contentType = r.Header.Get("Content-Type")
	f.body = string(body)
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"code":412,"message":"At least one of the pre-conditions you specified did not hold."}}`)
		return
	}
	_, _ = io.WriteString(w, `{"name":"forecasts/run.txt","bucket":"kp-raw","generation":"1"}`)
}

func (f *fakeGCS) last() (url.Values, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query, f.body
}

// media returns the object metadata and the media bytes of the last
// multipart insert request.
func (f *fakeGCS) media(t *testing.T) (string, []byte) {
	t.Helper()
	f.mu.Lock()
	contentType, body := f.contentType, f.body
	f.mu.Unlock()

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/related", mediaType)

	mr := multipart.NewReader(strings.NewReader(body), params["boundary"])
	meta, err := mr.NextPart()
	require.NoError(t, err)
	metaBytes, err := io.ReadAll(meta)
	require.NoError(t, err)

	part, err := mr.NextPart()
	require.NoError(t, err)
	data, err := io.ReadAll(part)
	require.NoError(t, err)
	return string(metaBytes), data
}

func newTestGCS(t *testing.T, fake *fakeGCS, gzipped bool) *GCSUploader {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := NewGCSUploader(context.Background(), GCSOptions{
		Bucket:   "kp-raw",
		Endpoint: srv.URL + "/storage/v1/",
		Gzip:     gzipped,
	}, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return u
}

func TestGCSUploader_Upload(t *testing.T) {
	fake := &fakeGCS{status: http.StatusOK}
	u := newTestGCS(t, fake, false)

	uri, err := u.Upload(context.Background(), "forecasts/run.txt", writeSource(t))
	require.NoError(t, err)
	assert.Equal(t, "gs://kp-raw/forecasts/run.txt", uri)

	query, body := fake.last()
	assert.Equal(t, "0", query.Get("ifGenerationMatch"))
	assert.Contains(t, body, `"name":"forecasts/run.txt"`)
	assert.Contains(t, body, seriesCSV)
	assert.InDelta(t, 1, testutil.ToFloat64(u.metrics.Uploads.WithLabelValues("gcs", "success")), 0)
}

func TestGCSUploader_Upload_Gzip(t *testing.T) {
	fake := &fakeGCS{status: http.StatusOK}
	u := newTestGCS(t, fake, true)

	uri, err := u.Upload(context.Background(), "forecasts/run.txt", writeSource(t))
	require.NoError(t, err)
	assert.Equal(t, "gs://kp-raw/forecasts/run.txt.gz", uri)

	meta, data := fake.media(t)
	assert.Contains(t, meta, `"contentEncoding":"gzip"`)
	assert.Contains(t, meta, `"name":"forecasts/run.txt.gz"`)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])

	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, seriesCSV, string(plain))
}

func TestGCSUploader_Upload_ExistingObject(t *testing.T) {
	fake := &fakeGCS{status: http.StatusPreconditionFailed}
	u := newTestGCS(t, fake, false)

	_, err := u.Upload(context.Background(), "forecasts/run.txt", writeSource(t))
	require.ErrorIs(t, err, ErrObjectExists)
	assert.Contains(t, err.Error(), "gs://kp-raw/forecasts/run.txt")
	assert.InDelta(t, 1, testutil.ToFloat64(u.metrics.Uploads.WithLabelValues("gcs", "exists")), 0)
}

// fakeS3 serves conditional PUTs for a single bucket from an in-memory map.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, _ := io.ReadAll(r.Body)
	f.puts = append(f.puts, r.Header.Clone())
	if _, ok := f.objects[r.URL.Path]; ok && r.Header.Get("If-None-Match") == "*" {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	f.objects[r.URL.Path] = data
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) state() ([]http.Header, map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts, f.objects
}

func newTestS3(t *testing.T, fake *fakeS3) *S3Uploader {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := NewS3Uploader(S3Options{
		Bucket:    "kp-raw",
		Endpoint:  srv.URL,
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	}, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return u
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	u := newTestS3(t, fake)

	uri, err := u.Upload(context.Background(), "forecasts/run.txt", writeSource(t))
	require.NoError(t, err)
	assert.Equal(t, "s3://kp-raw/forecasts/run.txt", uri)

	puts, objects := fake.state()
	require.Len(t, puts, 1)
	assert.Equal(t, "text/csv", puts[0].Get("Content-Type"))
	assert.Equal(t, "*", puts[0].Get("If-None-Match"))
	assert.Contains(t, string(objects["/kp-raw/forecasts/run.txt"]), seriesCSV)
	assert.InDelta(t, 1, testutil.ToFloat64(u.metrics.Uploads.WithLabelValues("s3", "success")), 0)
}

func TestS3Uploader_Upload_ExistingObject(t *testing.T) {
	const existing = "date,value\n2024-02-16 00:00:00,3.00\n"
	fake := &fakeS3{objects: map[string][]byte{
		"/kp-raw/forecasts/run.txt": []byte(existing),
	}}
	u := newTestS3(t, fake)

	_, err := u.Upload(context.Background(), "forecasts/run.txt", writeSource(t))
	require.ErrorIs(t, err, ErrObjectExists)
	assert.Contains(t, err.Error(), "s3://kp-raw/forecasts/run.txt")

	puts, objects := fake.state()
	require.Len(t, puts, 1)
	assert.Equal(t, "*", puts[0].Get("If-None-Match"))
	assert.Equal(t, existing, string(objects["/kp-raw/forecasts/run.txt"]))
	assert.InDelta(t, 1, testutil.ToFloat64(u.metrics.Uploads.WithLabelValues("s3", "exists")), 0)
}
