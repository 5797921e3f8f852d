package domain

import (
	"slices"
	"time"
)

// sourcedEntry keeps the content row an entry came from for error context.
type sourcedEntry struct {
	ForecastEntry
	row ParsedRow
}

// AssembleSeries turns tokenized rows into a sorted ForecastSeries. Each
// label's year is now's year in UTC; now is a parameter so callers control
// it. headerLine is the 1-based line of the header the labels came from.
// Rows are read hour by hour across days, so entries are built in row order
// and sorted once at the end.
func AssembleSeries(labels []DateLabel, headerLine int, rows []ParsedRow, now time.Time) (ForecastSeries, error) {
	year := now.UTC().Year()

	days := make([]time.Time, len(labels))
	for i, l := range labels {
		d := time.Date(year, l.Month, l.Day, 0, 0, 0, 0, time.UTC)
		if d.Month() != l.Month || d.Day() != l.Day {
			return ForecastSeries{}, malformed(headerLine, l.String(), "date %s does not exist in %d", l, year)
		}
		days[i] = d
	}

	sourced := make([]sourcedEntry, 0, len(labels)*len(rows))
	for _, row := range rows {
		if len(row.Cells) != len(labels) {
			return ForecastSeries{}, malformed(row.Line, row.Text, "got %d values, want %d", len(row.Cells), len(labels))
		}
		for j, cell := range row.Cells {
			sourced = append(sourced, sourcedEntry{
				ForecastEntry: ForecastEntry{
					Timestamp: days[j].Add(time.Duration(row.Hour) * time.Hour),
					Value:     cell.Value,
				},
				row: row,
			})
		}
	}

	slices.SortStableFunc(sourced, func(a, b sourcedEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	entries := make([]ForecastEntry, len(sourced))
	for i, e := range sourced {
		if i > 0 && e.Timestamp.Equal(sourced[i-1].Timestamp) {
			first, dup := sourced[i-1].row, e.row
			if dup.Line < first.Line {
				first, dup = dup, first
			}
			return ForecastSeries{}, malformed(dup.Line, dup.Text, "duplicate timestamp %s, first produced on line %d",
				e.Timestamp.Format(time.RFC3339), first.Line)
		}
		entries[i] = e.ForecastEntry
	}

	return ForecastSeries{Name: SeriesName, Entries: entries}, nil
}
