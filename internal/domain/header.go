package domain

import (
	"strconv"
	"strings"
	"time"
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ResolveHeader splits the header row into (month, day) pairs, one DateLabel
// per table column, preserving left-to-right order. line is the header's
// 1-based position and only feeds error context.
func ResolveHeader(header string, line int) ([]DateLabel, error) {
	tokens := strings.Fields(header)
	if len(tokens) == 0 {
		return nil, malformed(line, header, "empty header")
	}
	if len(tokens)%2 != 0 {
		return nil, malformed(line, header, "header has %d tokens, want month/day pairs", len(tokens))
	}

	labels := make([]DateLabel, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		month, ok := monthAbbrev[strings.ToLower(tokens[i])]
		if !ok {
			return nil, malformed(line, header, "unrecognized month %q", tokens[i])
		}
		day, err := strconv.Atoi(tokens[i+1])
		if err != nil || day < 1 || day > 31 {
			return nil, malformed(line, header, "invalid day %q", tokens[i+1])
		}
		labels = append(labels, DateLabel{Month: month, Day: day})
	}
	return labels, nil
}
