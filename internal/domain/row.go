package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var errUnterminatedAnnotation = errors.New("unterminated annotation")

type tokenKind int

const (
	tokenValue tokenKind = iota
	tokenAnnotation
)

// cellToken is one lexeme from the value area of a content row.
type cellToken struct {
	kind tokenKind
	text string
}

// TokenizeRow parses one content row against the header's DateLabels. The
// row label supplies the window start hour; every parenthesized storm tag is
// classified as an annotation and removed before the values are counted and
// parsed.
func TokenizeRow(row ContentRow, labels []DateLabel) (ParsedRow, error) {
	text := strings.TrimSpace(row.Text)
	label, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		label, rest = text[:i], text[i:]
	}

	m := windowLabelRe.FindStringSubmatch(label)
	if m == nil {
		return ParsedRow{}, malformed(row.Line, row.Text, "invalid window label %q", label)
	}
	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return ParsedRow{}, malformed(row.Line, row.Text, "window start hour %d out of range", hour)
	}

	tokens, err := lexCells(rest)
	if err != nil {
		return ParsedRow{}, malformed(row.Line, row.Text, "%s", err.Error())
	}

	cells := make([]ForecastCell, 0, len(labels))
	for _, tok := range tokens {
		switch tok.kind {
		case tokenAnnotation:
			if len(cells) > 0 {
				cells[len(cells)-1].Annotation = tok.text
			}
		case tokenValue:
			v, err := strconv.ParseFloat(tok.text, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return ParsedRow{}, malformed(row.Line, row.Text, "non-numeric value %q", tok.text)
			}
			cells = append(cells, ForecastCell{Raw: tok.text, Value: v})
		}
	}

	if len(cells) != len(labels) {
		return ParsedRow{}, malformed(row.Line, row.Text, "got %d values, want %d (one per forecast day)", len(cells), len(labels))
	}

	return ParsedRow{Line: row.Line, Text: row.Text, Hour: hour, Cells: cells}, nil
}

// lexCells splits the value area of a row into value and annotation tokens.
// An annotation runs from "(" to the matching ")" and may be glued to the
// preceding value, as in "5.00(G1)".
func lexCells(s string) ([]cellToken, error) {
	var tokens []cellToken
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return nil, errUnterminatedAnnotation
			}
			tokens = append(tokens, cellToken{
				kind: tokenAnnotation,
				text: strings.TrimSpace(s[i+1 : i+end]),
			})
			i += end + 1
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '(' {
				j++
			}
			tokens = append(tokens, cellToken{kind: tokenValue, text: s[i:j]})
			i = j
		}
	}
	return tokens, nil
}
