package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeUnits maps robot-style unit words to durations.
var timeUnits = map[string]time.Duration{
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"ms": time.Millisecond, "millis": time.Millisecond, "millisecond": time.Millisecond, "milliseconds": time.Millisecond,
}

var timeTermRe = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)\s*([a-z]+)`)

// ParseTimeout converts a user-facing timeout into a duration. It accepts a
// time.Duration, a number of seconds (int, float, or numeric string), a Go
// duration string ("20s", "1m30s") or a spelled-out form ("1 min 30 s").
// nil, "" and zero yield def. Negative values, or zero without a positive
// def, fail with ErrInvalidTimeout.
func ParseTimeout(v interface{}, def time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := v.(type) {
	case nil:
		d = def
	case time.Duration:
		d = t
	case int:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = secondsToDuration(t)
	case float32:
		d = secondsToDuration(float64(t))
	case string:
		parsed, err := parseTimeoutString(t, def)
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		return 0, ErrInvalidTimeout.WithMessagef("unsupported timeout type %T", v)
	}

	if d == 0 {
		d = def
	}
	if d <= 0 {
		return 0, ErrInvalidTimeout.WithMessagef("timeout must be positive, got %v", v).
			WithDetails(map[string]interface{}{"timeout": fmt.Sprint(v)})
	}
	return d, nil
}

func secondsToDuration(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

func parseTimeoutString(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(f), nil
	}
	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
		return d, nil
	}

	matches := timeTermRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, ErrInvalidTimeout.WithMessagef("invalid timeout %q", s)
	}
	var total time.Duration
	covered := 0
	for _, m := range matches {
		if strings.TrimSpace(s[covered:m[0]]) != "" {
			return 0, ErrInvalidTimeout.WithMessagef("invalid timeout %q", s)
		}
		num, _ := strconv.ParseFloat(s[m[2]:m[3]], 64)
		unit, ok := timeUnits[s[m[4]:m[5]]]
		if !ok {
			return 0, ErrInvalidTimeout.WithMessagef("invalid timeout unit %q in %q", s[m[4]:m[5]], s)
		}
		total += time.Duration(num * float64(unit))
		covered = m[1]
	}
	if strings.TrimSpace(s[covered:]) != "" {
		return 0, ErrInvalidTimeout.WithMessagef("invalid timeout %q", s)
	}
	return total, nil
}
