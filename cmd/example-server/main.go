package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/logging"
	"concierge-gateway/middleware/ratelimit"
	"concierge-gateway/middleware/ratelimit/domain"
	"concierge-gateway/middleware/ratelimit/infra"
	"concierge-gateway/upstream"

	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewServer("example-server", os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// Exemplo: middleware direto no seu webserver, sem proxy nem Redis
	store := infra.NewMemoryStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go store.RunJanitor(ctx)

	concierge := http.Handler(upstream.Handler{
		Provider: upstream.StaticProvider{Answer: "Ask me again in a minute, I am only a demo."},
		Logger:   logger,
	})
	concierge = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(concierge)
	concierge = ratelimit.Middleware(ratelimit.Options{
		Store:    store,
		Stats:    infra.NewMemoryStatsStore(),
		Policies: domain.Policies{contract.FamilyConcierge: domain.DefaultPolicy},
		Identity: ratelimit.HeaderIdentity("X-Api-Key"),
		Logger:   logger,
	})(concierge)

	mux := http.NewServeMux()
	mux.Handle(contract.ConciergePath, concierge)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr), zap.String("path", contract.ConciergePath))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
