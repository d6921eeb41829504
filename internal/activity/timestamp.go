package activity

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimestamp is returned for a since value that is not ISO-8601.
var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// Offsetless forms are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp such as
// "2024-03-21T14:30:00Z", "2024-03-21T14:30:00.5+01:00" or
// "2024-03-21 14:30" and returns it in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}
