package domain

import (
	"fmt"
	"strings"
	"time"
)

// SeriesName tags every series produced by ParseForecast.
const SeriesName = "kp_pred"

// RawTable is the forecast document as retrieved, one element per line.
type RawTable []string

// SplitLines turns a fetched document into a RawTable, normalizing CRLF line
// endings. A trailing newline does not produce an extra empty line.
func SplitLines(text string) RawTable {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return RawTable{}
	}
	return RawTable(strings.Split(text, "\n"))
}

// ContentRow is one 3-hour window row of the table together with its
// 1-based line number in the RawTable.
type ContentRow struct {
	Line int
	Text string
}

// TrimmedTable is the Kp table with banner and footer text removed.
// Every row's label starts with a decimal digit.
type TrimmedTable struct {
	Header     string
	HeaderLine int
	Rows       []ContentRow
}

// DateLabel is one forecast day as printed in the header: a month and day
// without a year.
type DateLabel struct {
	Month time.Month
	Day   int
}

func (d DateLabel) String() string {
	return fmt.Sprintf("%.3s %02d", d.Month.String(), d.Day)
}

// ForecastCell is the text of one (row, column) intersection. Annotation
// holds a stripped storm-scale tag such as "G1", or is empty.
type ForecastCell struct {
	Raw        string
	Annotation string
	Value      float64
}

// ParsedRow is a tokenized content row: the window start hour and one cell
// per DateLabel, in column order. Line and Text locate the source row.
type ParsedRow struct {
	Line  int
	Text  string
	Hour  int
	Cells []ForecastCell
}

// Values returns the numeric cell values in column order.
func (r ParsedRow) Values() []float64 {
	values := make([]float64, len(r.Cells))
	for i, c := range r.Cells {
		values[i] = c.Value
	}
	return values
}

// ForecastEntry is one predicted Kp value at 3-hour resolution.
type ForecastEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ForecastSeries is the chronologically sorted output of one parse.
type ForecastSeries struct {
	Name    string          `json:"name"`
	Entries []ForecastEntry `json:"entries"`
}

// Len returns the number of entries.
func (s ForecastSeries) Len() int { return len(s.Entries) }

// Span returns the first and last timestamps, or zero times for an empty series.
func (s ForecastSeries) Span() (time.Time, time.Time) {
	if len(s.Entries) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Entries[0].Timestamp, s.Entries[len(s.Entries)-1].Timestamp
}
