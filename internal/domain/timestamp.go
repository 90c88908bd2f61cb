package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical ISO-8601 UTC form with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as canonical ISO-8601 UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds and
// with any zone suffix, returning the instant in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
