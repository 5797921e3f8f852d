// Command kpparse parses a saved SWPC 3-day forecast document and prints the
// Kp series as CSV. It is useful for checking a captured document offline.
//
// Usage:
//
//	go run ./cmd/kpparse -in 3-day-forecast.txt -now 2024-02-17
//	curl -s https://services.swpc.noaa.gov/text/3-day-forecast.txt | go run ./cmd/kpparse
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kpparse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "forecast document to parse, - for stdin")
	nowFlag := fs.String("now", "", "date supplying the year, as YYYY-MM-DD (default today, UTC)")
	issued := fs.Bool("issued", false, "print the document issue time to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		t, err := time.Parse(time.DateOnly, *nowFlag)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -now %q: want YYYY-MM-DD\n", *nowFlag)
			return 2
		}
		now = t
	}

	text, err := readInput(*in, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	raw := domain.SplitLines(text)

	if *issued {
		if t, ok := domain.ParseIssued(raw); ok {
			fmt.Fprintf(stderr, "issued: %s\n", t.Format(time.RFC3339))
		} else {
			fmt.Fprintln(stderr, "issued: unknown")
		}
	}

	series, err := domain.ParseForecast(raw, now)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", *in, err)
		return 1
	}

	if err := csvfile.WriteSeries(stdout, series); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
