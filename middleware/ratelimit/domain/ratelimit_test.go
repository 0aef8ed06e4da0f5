package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestWindow_ConsumeCountsDownThenRejects(t *testing.T) {
	var w Window
	p := Policy{Limit: 5, Window: 60 * time.Second}

	for want := 4; want >= 0; want-- {
		d := w.Consume(t0, p)
		require.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
		assert.Equal(t, 5, d.Limit)
		assert.Zero(t, d.RetryAfterSeconds())
	}

	d := w.Consume(t0, p)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonRateLimited, d.Reason)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 60, d.RetryAfterSeconds())
	assert.Equal(t, 5, w.Count, "rejections do not consume")
}

func TestWindow_ResetsExactlyAtBoundary(t *testing.T) {
	var w Window
	p := Policy{Limit: 1, Window: 10 * time.Second}

	require.True(t, w.Consume(t0, p).Allowed)
	require.False(t, w.Consume(t0.Add(9999*time.Millisecond), p).Allowed)

	d := w.Consume(t0.Add(10*time.Second), p)
	require.True(t, d.Allowed)
	assert.Equal(t, t0.Add(10*time.Second), w.StartedAt)
	assert.Equal(t, 1, w.Count)
}

func TestWindow_RetryAfterIsCeiling(t *testing.T) {
	var w Window
	p := Policy{Limit: 1, Window: 60 * time.Second}
	w.Consume(t0, p)

	d := w.Consume(t0.Add(20500*time.Millisecond), p)
	require.False(t, d.Allowed)
	assert.Equal(t, 39500*time.Millisecond, d.RetryAfter)
	assert.Equal(t, 40, d.RetryAfterSeconds())

	d = w.Consume(t0.Add(59999*time.Millisecond), p)
	assert.Equal(t, 1, d.RetryAfterSeconds())
}

func TestDecision_RejectedNeverReportsZeroRetry(t *testing.T) {
	d := Decision{Allowed: false, Reason: ReasonUnavailable}
	assert.Equal(t, 1, d.RetryAfterSeconds())
}

func TestPolicies_LookupFallsBackToDefault(t *testing.T) {
	ps := Policies{
		"ai-concierge": {Limit: 3, Window: time.Minute},
		"broken":       {Limit: 0, Window: time.Minute},
	}
	assert.Equal(t, Policy{Limit: 3, Window: time.Minute}, ps.Lookup("ai-concierge"))
	assert.Equal(t, DefaultPolicy, ps.Lookup("broken"))
	assert.Equal(t, DefaultPolicy, ps.Lookup("other"))
	assert.Equal(t, DefaultPolicy, Policies(nil).Lookup("x"))
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key("ai-concierge:user-1"), NewKey(" ai-concierge", "user-1 "))
}
