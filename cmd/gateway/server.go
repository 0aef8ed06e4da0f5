package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit"
	"concierge-gateway/middleware/ratelimit/domain"
	"concierge-gateway/middleware/ratelimit/infra"
	"concierge-gateway/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// gateway reúne o handler montado e o que precisa rodar ou fechar junto com o servidor.
type gateway struct {
	handler http.Handler
	stats   *infra.MemoryStatsStore
	janitor func(ctx context.Context)
	closers []func() error
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		_ = g.closers[i]()
	}
}

func buildGateway(ctx context.Context, cfg config, logger *zap.Logger) (*gateway, error) {
	g := &gateway{stats: infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Rate.Stats.TrackKeys))}
	ok := false
	defer func() {
		if !ok {
			g.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := infra.NewPrometheusStatsStore(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	stats := infra.FanoutStats{g.stats, prom}

	var store domain.WindowStore
	switch cfg.Rate.Store {
	case "redis":
		rdb, err := newRedisClient(ctx, cfg.Rate.Redis.Addr, cfg.Rate.Redis.Password, cfg.Rate.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("redis window store: %w", err)
		}
		g.closers = append(g.closers, rdb.Close)
		store = infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.Rate.Redis.Prefix))
	default:
		mem := infra.NewMemoryStore(infra.WithIdleTTL(2 * maxWindow(cfg.policies())))
		g.janitor = mem.RunJanitor
		store = mem
	}

	if cfg.Rate.Stats.Enabled {
		rdb, err := newRedisClient(ctx, cfg.Rate.Stats.RedisAddr, cfg.Rate.Stats.RedisPassword, cfg.Rate.Stats.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis stats: %w", err)
		}
		g.closers = append(g.closers, rdb.Close)
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Rate.Stats.Prefix),
			infra.WithStatsTTL(cfg.Rate.Stats.TTL),
			infra.WithStatsBucket(cfg.Rate.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Rate.Stats.TrackKeys),
		))
	}

	target, err := newUpstream(cfg, logger)
	if err != nil {
		return nil, err
	}

	var identity ratelimit.IdentityFunc
	switch cfg.Identity.Mode {
	case "header":
		identity = ratelimit.HeaderIdentity(cfg.Identity.Header)
	default:
		identity = ratelimit.BearerIdentity([]byte(cfg.Identity.JWTSecret))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ratelimit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	r.Get("/ratelimit/stats", statsHandler(g.stats))

	var chain []func(http.Handler) http.Handler
	if cfg.Rate.Enabled {
		chain = append(chain, ratelimit.Middleware(ratelimit.Options{
			Store:             store,
			Stats:             stats,
			Policies:          cfg.policies(),
			Family:            contract.FamilyConcierge,
			Identity:          identity,
			Logger:            logger,
			RequestID:         middleware.GetReqID,
			FailureRetryAfter: cfg.Rate.FailureRetryAfter,
		}))
	}
	chain = append(chain, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.Timeout,
		RetryAfter:     cfg.Concurrency.RetryAfter,
	}))
	r.With(chain...).Post(contract.ConciergePath, target.ServeHTTP)

	g.handler = r
	ok = true
	return g, nil
}

func newUpstream(cfg config, logger *zap.Logger) (http.Handler, error) {
	switch cfg.Upstream.Mode {
	case "proxy":
		proxy, err := upstream.NewProxy(cfg.Upstream.URL, logger)
		if err != nil {
			return nil, err
		}
		return proxy, nil
	case "openai":
		var opts []upstream.OpenAIOption
		if cfg.OpenAI.SystemPrompt != "" {
			opts = append(opts, upstream.WithSystemPrompt(cfg.OpenAI.SystemPrompt))
		}
		if cfg.OpenAI.MaxTokens > 0 {
			opts = append(opts, upstream.WithMaxTokens(cfg.OpenAI.MaxTokens))
		}
		p := upstream.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, opts...)
		return upstreamHandler(upstream.Paced(p, cfg.Upstream.RPS, cfg.Upstream.Burst), cfg, logger), nil
	default:
		p := upstream.StaticProvider{Answer: cfg.Upstream.Answer}
		return upstreamHandler(upstream.Paced(p, cfg.Upstream.RPS, cfg.Upstream.Burst), cfg, logger), nil
	}
}

func upstreamHandler(p upstream.Provider, cfg config, logger *zap.Logger) http.Handler {
	return upstream.Handler{Provider: p, Logger: logger, Timeout: cfg.Upstream.Timeout}
}

func newRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	return rdb, nil
}

type statsResponse struct {
	Total    infra.Counters                `json:"total"`
	ByFamily map[string]infra.Counters     `json:"byFamily"`
	ByReason map[domain.Reason]int64       `json:"byReason"`
	ByKey    map[domain.Key]infra.Counters `json:"byKey,omitempty"`
}

func statsHandler(s *infra.MemoryStatsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ratelimit.WriteJSON(w, http.StatusOK, statsResponse{
			Total:    s.Total(),
			ByFamily: s.ByFamily(),
			ByReason: s.ByReason(),
			ByKey:    s.ByKey(),
		})
	}
}

func maxWindow(p domain.Policies) time.Duration {
	longest := domain.DefaultPolicy.Window
	for _, pol := range p {
		if pol.Window > longest {
			longest = pol.Window
		}
	}
	return longest
}
