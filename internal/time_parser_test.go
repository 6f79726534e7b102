package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationHeader(t *testing.T) {
	assert.Equal(t, time.Second, ParseDurationHeader("1s"))
	assert.Equal(t, 6*time.Minute, ParseDurationHeader("6m0s"))
	assert.Equal(t, 20*time.Second, ParseDurationHeader("20"))
	assert.Equal(t, 1500*time.Millisecond, ParseDurationHeader("1.5"))
	assert.Zero(t, ParseDurationHeader(""))
	assert.Zero(t, ParseDurationHeader("-3"))
	assert.Zero(t, ParseDurationHeader("soon"))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, 7*time.Second, ParseRetryAfter("7", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter("Mon, 15 Jan 2024 14:31:30 GMT", now))
	assert.Zero(t, ParseRetryAfter("Mon, 15 Jan 2024 14:00:00 GMT", now))
	assert.Zero(t, ParseRetryAfter("", now))
}

func TestParseMillis(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, time.UnixMilli(1_726_000_000_123), ParseMillis("1726000000123", now))
	assert.Equal(t, now, ParseMillis("", now))
	assert.Equal(t, now, ParseMillis("yesterday", now))
}
