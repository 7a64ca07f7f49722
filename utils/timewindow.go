package utils

import (
	"fmt"
	"time"
)

const ClockLayout = "15:04"

// ParseClock parses an "HH:MM" time of day into minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// LoadLocation resolves an IANA timezone name, falling back to UTC when empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InDailyWindow reports whether the time of day of now, in loc, falls inside
// [start, end]. Both bounds are inclusive. When start > end the window spans
// midnight.
func InDailyWindow(now time.Time, start, end string, loc *time.Location) (bool, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	current := local.Hour()*60 + local.Minute()

	if startMin > endMin {
		return current >= startMin || current <= endMin, nil
	}
	return current >= startMin && current <= endMin, nil
}
