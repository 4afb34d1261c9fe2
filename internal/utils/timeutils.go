package utils

import (
	"fmt"
	"time"
)

// naiveISOLayouts covers timestamps the backend emits without a zone offset.
var naiveISOLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// ParseBackendTime accepts RFC3339 or zone-less ISO-8601 timestamps, treating the latter as UTC.
func ParseBackendTime(value string) (time.Time, error) {
	if t, err := ParseRFC3339(value); err == nil {
		return t, nil
	} else if value == "" {
		return time.Time{}, err
	}
	for _, layout := range naiveISOLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time: unsupported format %q", value)
}

// SecondsToDuration converts fractional seconds reported by the backend.
func SecondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
