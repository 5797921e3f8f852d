// Package csvfile persists a forecast series as a delimited text file.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
)

// DateLayout is the timestamp format of the "date" column.
const DateLayout = "2006-01-02 15:04:05"

// FileName returns the raw data file name for a run started at t,
// e.g. "20240217T123000Z_kp_raw_data.txt".
func FileName(t time.Time) string {
	return t.UTC().Format("20060102T150405Z") + "_kp_raw_data.txt"
}

// WriteSeries writes the header "date,value" followed by one row per entry.
func WriteSeries(w io.Writer, series domain.ForecastSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range series.Entries {
		record := []string{
			e.Timestamp.UTC().Format(DateLayout),
			strconv.FormatFloat(e.Value, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Writer saves series files under a fixed directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// FileName returns the file name for a run started at t.
func (w *Writer) FileName(t time.Time) string {
	return FileName(t)
}

// Save writes the series to dir/fileName, creating dir if needed, and
// returns the file path.
func (w *Writer) Save(series domain.ForecastSeries, fileName string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create raw data dir: %w", err)
	}

	path := filepath.Join(w.dir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create series file: %w", err)
	}

	if err := WriteSeries(f, series); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close series file: %w", err)
	}
	return path, nil
}
