package util

import (
	"strconv"
	"time"
)

// ParseIntDefault parses s as an int, falling back to def when s is
// empty or malformed.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseTime accepts RFC3339, RFC3339Nano, or unix seconds. The bool
// reports whether any format matched.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses s as a time, falling back to def.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

var timeframes = map[string]time.Duration{
	"1s": time.Second,
	"1m": time.Minute,
	"5m": 5 * time.Minute,
	"1h": time.Hour,
}

// AlignFromTo truncates both ends of a time range to the timeframe
// boundary. Unknown timeframes align to the minute.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	d, ok := timeframes[tf]
	if !ok {
		d = time.Minute
	}
	return from.Truncate(d), to.Truncate(d)
}
