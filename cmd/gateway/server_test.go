package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concierge-gateway/contract"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config {
	return config{
		ListenAddr:     ":0",
		MetricsEnabled: true,
		Upstream:       upstreamConfig{Mode: "static", Answer: "Try the ramen place", Timeout: time.Second},
		Rate: rateConfig{
			Enabled:           true,
			Limit:             5,
			Window:            time.Minute,
			Store:             "memory",
			FailureRetryAfter: time.Second,
			Redis:             redisConfig{Prefix: "ratelimit:window"},
		},
		Identity:    identityConfig{Mode: "header", Header: "X-User-Id"},
		Concurrency: concurrencyConfig{Max: 10},
	}
}

func newTestGateway(t *testing.T, cfg config) *httptest.Server {
	t.Helper()
	gw, err := buildGateway(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	srv := httptest.NewServer(gw.handler)
	t.Cleanup(srv.Close)
	return srv
}

func ask(t *testing.T, srv *httptest.Server, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+contract.ConciergePath, strings.NewReader(`{"prompt":"dinner?"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func assertFiveThenThrottled(t *testing.T, srv *httptest.Server) {
	t.Helper()
	for i := 0; i < 5; i++ {
		resp := ask(t, srv, "user-1")
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)

		var body contract.AskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Try the ramen place", body.Answer)
		require.NotNil(t, body.Quota)
		assert.Equal(t, 4-i, body.Quota.Remaining)
	}

	resp := ask(t, srv, "user-1")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(contract.HeaderRetryAfter))

	var throttle contract.ThrottleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&throttle))
	assert.Equal(t, contract.CodeRateLimited, throttle.Error)
	assert.Equal(t, 5, throttle.Limit)
	assert.GreaterOrEqual(t, throttle.RetryAfterSeconds, 1)

	// outro usuário tem a própria janela
	assert.Equal(t, http.StatusOK, ask(t, srv, "user-2").StatusCode)
}

func TestGateway_MemoryStore(t *testing.T) {
	assertFiveThenThrottled(t, newTestGateway(t, testConfig()))
}

func TestGateway_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Rate.Store = "redis"
	cfg.Rate.Redis.Addr = mr.Addr()

	assertFiveThenThrottled(t, newTestGateway(t, cfg))
}

func TestGateway_RedisStatsRecorded(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Rate.Stats = statsConfig{Enabled: true, RedisAddr: mr.Addr(), Prefix: "ratelimit:stats", TTL: time.Hour, Bucket: "minute"}

	srv := newTestGateway(t, cfg)
	ask(t, srv, "user-1")

	assert.Equal(t, "1", mr.HGet("ratelimit:stats:total", "admitted"))
}

func TestGateway_UnauthenticatedIs401(t *testing.T) {
	srv := newTestGateway(t, testConfig())

	resp := ask(t, srv, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RedisUnreachableFailsBuild(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Store = "redis"
	cfg.Rate.Redis.Addr = "127.0.0.1:1"

	_, err := buildGateway(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestGateway_HealthMetricsAndStats(t *testing.T) {
	srv := newTestGateway(t, testConfig())
	ask(t, srv, "user-1")

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `concierge_ratelimit_decisions_total{family="ai-concierge",reason="admitted"} 1`)

	resp, err = srv.Client().Get(srv.URL + "/ratelimit/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats.Total.Admitted)
}

func TestGateway_RateDisabledSkipsLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = false
	srv := newTestGateway(t, cfg)

	for i := 0; i < 7; i++ {
		require.Equal(t, http.StatusOK, ask(t, srv, "").StatusCode)
	}
}

func TestGateway_ProxyMode(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contract.ConciergePath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"from backend"}`))
	}))
	t.Cleanup(backend.Close)

	cfg := testConfig()
	cfg.Upstream = upstreamConfig{Mode: "proxy", URL: backend.URL, Timeout: time.Second}
	srv := newTestGateway(t, cfg)

	resp := ask(t, srv, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4", resp.Header.Get(contract.HeaderRemaining))

	var body contract.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "from backend", body.Answer)
}
