// internal/time_parser.go
// ------------------------
// Helpers for the time formats providers put in headers and redirect URLs.
//
// Functions:
// - ParseDurationHeader: "1s", "6m0s", "20" (seconds) into a time.Duration.
// - ParseRetryAfter: Retry-After as delta-seconds or HTTP-date.
// - MillisToTime: epoch milliseconds (Salesforce issued_at) into time.Time.
package internal

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseDurationHeader converts strings like "1s", "6m0s" or a bare number of
// seconds into a duration. Unparseable input yields 0.
func ParseDurationHeader(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter reads a Retry-After header value relative to now.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if d := ParseDurationHeader(v); d > 0 {
		return d
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// MillisToTime converts epoch milliseconds to a time.Time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// ParseMillis parses a decimal epoch-milliseconds string, falling back to now.
func ParseMillis(s string, now time.Time) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return now
	}
	return MillisToTime(ms)
}
