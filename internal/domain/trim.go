package domain

import (
	"regexp"
	"strings"
)

// MaxScanLines caps how far TrimTable looks for the first content row.
const MaxScanLines = 1000

// windowLabelRe matches a 3-hour window row label, e.g. "00-03UT".
var windowLabelRe = regexp.MustCompile(`^(\d{2})-(\d{2})UT$`)

// TrimTable locates the Kp table inside a raw document. The first row whose
// first non-blank character is a decimal digit starts the table; the nearest
// non-blank row above it is the header. The table then extends over every
// following row labelled with a 3-hour window and stops at the first row that
// is not.
func TrimTable(raw RawTable) (TrimmedTable, error) {
	if len(raw) == 0 {
		return TrimmedTable{}, malformed(0, "", "empty document")
	}

	limit := min(len(raw), MaxScanLines)
	start := -1
	for i := range limit {
		if startsWithDigit(raw[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return TrimmedTable{}, malformed(0, "", "no row starting with a digit in the first %d lines", limit)
	}

	header := -1
	for i := start - 1; i >= 0; i-- {
		if strings.TrimSpace(raw[i]) != "" {
			header = i
			break
		}
	}
	if header < 0 {
		return TrimmedTable{}, malformed(start+1, raw[start], "no header row above the first content row")
	}

	rows := []ContentRow{{Line: start + 1, Text: raw[start]}}
	for i := start + 1; i < len(raw); i++ {
		if !isWindowRow(raw[i]) {
			break
		}
		rows = append(rows, ContentRow{Line: i + 1, Text: raw[i]})
	}

	return TrimmedTable{
		Header:     raw[header],
		HeaderLine: header + 1,
		Rows:       rows,
	}, nil
}

func startsWithDigit(line string) bool {
	line = strings.TrimLeft(line, " \t")
	return line != "" && line[0] >= '0' && line[0] <= '9'
}

func isWindowRow(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && windowLabelRe.MatchString(fields[0])
}
