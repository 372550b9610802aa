// Package codec implements the DecSync log-line format.
//
// A log line is `<datetime>\t<key>\t<value>\n`. The datetime is an ISO-8601
// UTC timestamp with millisecond precision; key and value are opaque strings
// (canonical JSON by convention) which may contain tabs in the value but
// never a raw newline.
package codec

import (
	"errors"
	"strings"
	"time"
)

// DatetimeLayout is the timestamp format used on every log line,
// e.g. 2024-03-14T15:09:26.535.
const DatetimeLayout = "2006-01-02T15:04:05.000"

// ErrCorruptLine reports a log line that fails the format check.
var ErrCorruptLine = errors.New("corrupt log line")

// Line is one decoded log line.
type Line struct {
	Datetime string
	Key      string
	Value    string
}

// Now returns the current UTC time formatted as a line datetime.
func Now() string {
	return time.Now().UTC().Format(DatetimeLayout)
}

// Format renders a line for appending, including the trailing newline.
func Format(l Line) string {
	return l.Datetime + "\t" + l.Key + "\t" + l.Value + "\n"
}

// Parse decodes a single line (without its trailing newline).
//
// The line splits on the first two tabs; everything after the second tab is
// the value. A line with fewer than two tabs, an empty datetime, a datetime
// containing a space, or a raw newline in any field fails with
// ErrCorruptLine.
func Parse(raw string) (Line, error) {
	i := strings.IndexByte(raw, '\t')
	if i < 0 {
		return Line{}, ErrCorruptLine
	}
	j := strings.IndexByte(raw[i+1:], '\t')
	if j < 0 {
		return Line{}, ErrCorruptLine
	}
	l := Line{
		Datetime: raw[:i],
		Key:      raw[i+1 : i+1+j],
		Value:    raw[i+1+j+1:],
	}
	if l.Datetime == "" || strings.ContainsAny(l.Datetime, " \n") {
		return Line{}, ErrCorruptLine
	}
	if strings.ContainsRune(l.Key, '\n') || strings.ContainsRune(l.Value, '\n') {
		return Line{}, ErrCorruptLine
	}
	return l, nil
}
