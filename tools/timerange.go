package tools

import (
	"strings"
	"time"
)

// TimeRange returns the time window from RFC3339 start and end,
// when start is empty the window is `back` before the end,
// and the end defaults to now.
func TimeRange(start, end string, back time.Duration) (time.Time, time.Time, error) {
	endTime := NowFunc().UTC()
	if end != "" {
		t, err := ParseTime(end)
		if err != nil {
			return time.Time{}, time.Time{}, InvalidInput("invalid end_time %q: expected RFC3339", end)
		}
		endTime = t
	}

	startTime := endTime.Add(-back)
	if start != "" {
		t, err := ParseTime(start)
		if err != nil {
			return time.Time{}, time.Time{}, InvalidInput("invalid start_time %q: expected RFC3339", start)
		}
		startTime = t
	}

	if !startTime.Before(endTime) {
		return time.Time{}, time.Time{}, InvalidInput("start_time must be before end_time")
	}
	return startTime, endTime, nil
}

// ParseTime parses RFC3339 time, or a date in 2006-01-02 form
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
