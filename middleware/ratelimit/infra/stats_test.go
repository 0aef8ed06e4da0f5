package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"concierge-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admittedEvent() domain.StatsEvent {
	return domain.StatsEvent{
		Key: key, Family: "ai-concierge", Reason: domain.ReasonAdmitted,
		Allowed: true, Remaining: 3, Method: "POST", Path: "/api/ai/concierge", At: t0,
	}
}

func deniedEvent() domain.StatsEvent {
	ev := admittedEvent()
	ev.Allowed = false
	ev.Reason = domain.ReasonRateLimited
	ev.Remaining = 0
	return ev
}

func TestMemoryStatsStore_Aggregates(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, admittedEvent()))
	require.NoError(t, s.Record(ctx, admittedEvent()))
	require.NoError(t, s.Record(ctx, deniedEvent()))

	assert.Equal(t, Counters{Admitted: 2, Denied: 1}, s.Total())
	assert.Equal(t, Counters{Admitted: 2, Denied: 1}, s.ByFamily()["ai-concierge"])
	assert.Equal(t, int64(1), s.ByReason()[domain.ReasonRateLimited])
	assert.Equal(t, Counters{Admitted: 2, Denied: 1}, s.ByKey()[key])
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), admittedEvent()))
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_WritesHashes(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, admittedEvent()))
	require.NoError(t, s.Record(ctx, deniedEvent()))

	assert.Equal(t, "1", mr.HGet("stats:total", "admitted"))
	assert.Equal(t, "1", mr.HGet("stats:total", "denied"))
	assert.Equal(t, "1", mr.HGet("stats:family", "ai-concierge:rate_limited"))
	assert.Equal(t, "1", mr.HGet("stats:minute:202603011200", "admitted"))
	assert.Equal(t, "1", mr.HGet("stats:key:"+string(key), "denied"))
	assert.Equal(t, time.Hour, mr.TTL("stats:minute:202603011200"))
}

func TestRedisStatsStore_NoBucket(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket(" NONE "))

	require.NoError(t, s.Record(context.Background(), admittedEvent()))
	assert.False(t, mr.Exists("ratelimit:stats:minute:202603011200"))
	assert.Equal(t, "1", mr.HGet("ratelimit:stats:total", "admitted"))
}

func TestPrometheusStatsStore_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusStatsStore(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, admittedEvent()))
	require.NoError(t, s.Record(ctx, deniedEvent()))
	require.NoError(t, s.Record(ctx, deniedEvent()))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("ai-concierge", "admitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.decisions.WithLabelValues("ai-concierge", "rate_limited")))

	_, err = NewPrometheusStatsStore(reg)
	assert.Error(t, err, "registering twice must fail")
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestFanoutStats_RecordsEverywhereAndJoinsErrors(t *testing.T) {
	mem := NewMemoryStatsStore()
	boom := errors.New("boom")

	err := FanoutStats{mem, nil, failingStats{err: boom}}.Record(context.Background(), admittedEvent())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), mem.Total().Admitted)
}

func TestChanPool_LimitsAndReleasesOnce(t *testing.T) {
	pool := NewChanPool(1)

	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = pool.Acquire(ctx)
	require.False(t, ok, "second acquire must wait for a free slot")

	release()
	release()

	r2, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer r2()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, ok = pool.Acquire(ctx2)
	require.False(t, ok, "double release must not free an extra slot")
}
