package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is the root of every structural parse failure.
	ErrMalformedInput = errors.New("malformed input")

	// ErrSourceUnavailable means the forecast document could not be obtained.
	// It is returned by the source adapters, never by the parser.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// MalformedInputError describes where a forecast document violated the
// expected table structure. Line is 1-based; zero means the error is not tied
// to a single line.
type MalformedInputError struct {
	Line    int
	Content string
	Reason  string
}

func (e *MalformedInputError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input: line %d: %s: %q", e.Line, e.Reason, e.Content)
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

func malformed(line int, content, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{
		Line:    line,
		Content: content,
		Reason:  fmt.Sprintf(format, args...),
	}
}
