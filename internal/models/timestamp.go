package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is the timezone-less ISO form produced by the original Python backend.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time that also decodes naive (UTC-assumed) ISO timestamps.
// A value that cannot be decoded leaves the zero time and is kept in raw, so one
// bad row does not fail the whole job list.
type Timestamp struct {
	time.Time
	raw string
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// Malformed returns the undecodable input, if any.
func (t Timestamp) Malformed() (string, bool) {
	return t.raw, t.raw != ""
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Time, t.raw = time.Time{}, ""
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		t.raw = string(data)
		return nil
	}
	parsed, err := ParseTimestamp(value)
	if err != nil {
		t.raw = value
		return nil
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses RFC3339 (with or without fractional seconds) and the naive
// ISO layout, which is interpreted as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.ParseInLocation(naiveLayout, value, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized format %q", value)
}
