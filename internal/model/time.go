package model

import (
	"fmt"
	"time"
)

// ParseTime parses an ISO-8601 timestamp as sent by the backend.
// Empty input yields the zero time.
func ParseTime(iso string) (time.Time, error) {
	if iso == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Some endpoints omit the zone; treat those as UTC.
		t, err = time.Parse("2006-01-02T15:04:05.999999999", iso)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", iso, err)
		}
	}

	return t.UTC(), nil
}

// FormatTime renders t as ISO-8601 in UTC. The zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
