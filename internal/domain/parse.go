package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// issuedRe matches the SWPC banner line ":Issued: 2024 Feb 17 1230 UTC".
var issuedRe = regexp.MustCompile(`^:Issued:\s+(\d{4})\s+([A-Za-z]{3})\s+(\d{1,2})\s+(\d{4})\s+UTC`)

// ParseForecast extracts the Kp forecast series from a raw document. now
// supplies the year for the header dates. The returned series is sorted by
// timestamp and holds one entry per (window, day) cell.
func ParseForecast(raw RawTable, now time.Time) (ForecastSeries, error) {
	table, err := TrimTable(raw)
	if err != nil {
		return ForecastSeries{}, err
	}

	labels, err := ResolveHeader(table.Header, table.HeaderLine)
	if err != nil {
		return ForecastSeries{}, err
	}

	rows := make([]ParsedRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		parsed, err := TokenizeRow(r, labels)
		if err != nil {
			return ForecastSeries{}, err
		}
		rows = append(rows, parsed)
	}

	return AssembleSeries(labels, table.HeaderLine, rows, now)
}

// ParseIssued returns the issue time from the document banner. The second
// return value is false when no ":Issued:" line is present or it does not
// parse.
func ParseIssued(raw RawTable) (time.Time, bool) {
	for _, line := range raw {
		m := issuedRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		month, ok := monthAbbrev[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4][:2])
		minute, _ := strconv.Atoi(m[4][2:])
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
		t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
		if t.Day() != day {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Digest returns a deterministic short hash of the series content. Two
// documents that yield the same entries have the same digest, which lets a
// reissued but unchanged forecast be recognized.
func Digest(series ForecastSeries) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", series.Name)
	for _, e := range series.Entries {
		fmt.Fprintf(h, "%s|%.2f\n", e.Timestamp.UTC().Format(time.RFC3339), e.Value)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
