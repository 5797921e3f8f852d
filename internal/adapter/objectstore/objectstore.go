// Package objectstore uploads saved series files to a bucket without ever
// overwriting an existing object.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// ErrObjectExists is returned when the destination key is already present.
var ErrObjectExists = errors.New("object already exists")

// Uploader copies a local file to remote storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
}

// payload is the body and metadata for one upload.
type payload struct {
	key             string
	body            []byte
	contentType     string
	contentEncoding string
}

// preparePayload reads localPath and, when compress is set, gzips the body
// and appends ".gz" to the key.
func preparePayload(key, localPath string, compress bool) (payload, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return payload{}, fmt.Errorf("read upload source: %w", err)
	}

	p := payload{key: key, body: data, contentType: "text/csv"}
	if !compress {
		return p, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return payload{}, fmt.Errorf("gzip upload source: %w", err)
	}
	if err := zw.Close(); err != nil {
		return payload{}, fmt.Errorf("gzip upload source: %w", err)
	}
	p.key += ".gz"
	p.body = buf.Bytes()
	p.contentEncoding = "gzip"
	return p, nil
}

func (p payload) reader() io.Reader {
	return bytes.NewReader(p.body)
}
