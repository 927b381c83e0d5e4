package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingTime is returned by RawTime.Parse for an empty timestamp.
var ErrMissingTime = errors.New("timestamp missing")

// RawTime is a timestamp exactly as the API sent it.
//
// Different record sources disagree on representation: steps carry RFC 3339
// strings, browser logs often carry epoch milliseconds as numbers. RawTime
// accepts both on decode and defers interpretation to Parse, so a single bad
// record can be dropped without failing the whole payload.
type RawTime string

// UnmarshalJSON accepts a JSON string, a JSON number, or null.
// Numbers are kept verbatim.
func (r *RawTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawTime(s)
		return nil
	}
	*r = RawTime(data)
	return nil
}

// IsZero reports whether no timestamp was supplied.
func (r RawTime) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// maxEpochMillis is 9999-12-31T23:59:59.999Z, the last instant the text
// layouts can express. Numeric timestamps outside [0, maxEpochMillis] are
// rejected rather than wrapped.
const maxEpochMillis = 253402300799999

// layouts are tried in order after the numeric forms.
// Layouts without a zone parse as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Parse coerces the raw value to a UTC wall-clock time.
//
// Accepted forms:
//   - RFC 3339 with or without fractional seconds
//   - "2006-01-02 15:04:05" and "2006-01-02T15:04:05" (UTC assumed)
//   - epoch milliseconds as an integer or decimal, from 1970 to year 9999
func (r RawTime) Parse() (time.Time, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return time.Time{}, ErrMissingTime
	}

	if looksNumeric(s) {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			if ms < 0 || ms > maxEpochMillis {
				return time.Time{}, fmt.Errorf("epoch milliseconds %q out of range", s)
			}
			return time.UnixMilli(ms).UTC(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %q", s)
		}
		if f < 0 || f > maxEpochMillis {
			return time.Time{}, fmt.Errorf("epoch milliseconds %q out of range", s)
		}
		return time.UnixMicro(int64(math.Round(f * 1000))).UTC(), nil
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func looksNumeric(s string) bool {
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.' || c == 'e' || c == 'E':
		case (c == '-' || c == '+') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		default:
			return false
		}
	}
	return true
}
