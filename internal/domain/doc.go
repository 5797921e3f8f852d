// Package domain models the NOAA Space Weather Prediction Center (SWPC)
// 3-day geomagnetic forecast and parses its Kp index table.
//
// # Data Source
//
// The forecast is published as plain text at
// https://services.swpc.noaa.gov/text/3-day-forecast.txt and is reissued
// roughly twice a day. The fetcher in adapter/swpc retrieves it; this package
// only ever sees the document as a slice of lines ([RawTable]).
//
// # Document Layout
//
// Banner and rationale text surround a fixed-width table:
//
//	:Issued: 2024 Feb 17 1230 UTC
//	...
//	NOAA Kp index breakdown Feb 17-Feb 19 2024
//
//	             Feb 17       Feb 18       Feb 19
//	00-03UT       1.67         6.00 (G2)    3.33
//	03-06UT       3.00         5.33 (G1)    2.33
//	...
//	21-00UT       5.00 (G1)    3.67         2.67
//
//	Rationale: ...
//
// Header row:
//
//	Month abbreviation and day number pairs, one pair per forecast day,
//	separated by arbitrary whitespace. Column order is chronological order.
//	The header carries no year.
//
// Content rows:
//
//	A 3-hour window label "HH-HHUT" (UTC start and end hour) followed by one
//	Kp value per forecast day. A value may carry a NOAA G-scale storm tag in
//	parentheses, e.g. "6.00 (G2)". Tags are metadata and never shift columns.
//
// # Parsing Stages
//
//	TrimTable      banner/footer removal, bounded scan for the first digit-led row
//	ResolveHeader  header text to []DateLabel
//	TokenizeRow    window label to hour, cells to values with tags stripped
//	AssembleSeries (label, hour) to timestamps, then one stable sort
//
// [ParseForecast] chains the four stages. Any structural violation aborts the
// parse with a [*MalformedInputError] that unwraps to [ErrMalformedInput];
// no partial series is returned.
//
// # Year Inference
//
// The year of every forecast day is the year of the injected "now". A
// document parsed on Dec 31 whose last column is "Jan 02" produces a Jan 2
// timestamp in the same (past) year. This is a known limitation and is pinned
// by TestParseForecast_YearRolloverKnownLimitation.
package domain
