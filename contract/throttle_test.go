package contract

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilSeconds(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-3 * time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{60 * time.Second, 60},
		{59*time.Second + 500*time.Millisecond, 60},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CeilSeconds(tc.in), "CeilSeconds(%s)", tc.in)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	secs, ok := ParseRetryAfter(" 42 ", now)
	require.True(t, ok)
	assert.Equal(t, 42, secs)

	secs, ok = ParseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now)
	require.True(t, ok)
	assert.Equal(t, 30, secs)

	secs, ok = ParseRetryAfter("-5", now)
	require.True(t, ok)
	assert.Equal(t, 0, secs)

	_, ok = ParseRetryAfter("", now)
	assert.False(t, ok)

	_, ok = ParseRetryAfter("soon", now)
	assert.False(t, ok)
}

func TestThrottleResponseWireShape(t *testing.T) {
	raw, err := json.Marshal(ThrottleResponse{
		Error:             CodeRateLimited,
		RetryAfterSeconds: 60,
		Limit:             5,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"rate_limited","retryAfterSeconds":60,"limit":5,"remaining":0}`, string(raw))
}
