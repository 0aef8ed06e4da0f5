package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"concierge-gateway/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Rate-limited gateway in front of the AI concierge",
		Long: `Serves POST /api/ai/concierge behind a per-user fixed window limiter.

Every setting can come from flags, the environment (LISTEN_ADDR, RATE_LIMIT,
RATE_WINDOW, RATE_STORE, UPSTREAM_MODE, ...) or an optional YAML file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.NewServer("gateway", cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	flags.String("listen", ":8080", "listen address")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("upstream-mode", "static", "static, proxy or openai")
	flags.String("rate-store", "memory", "memory or redis")
	_ = v.BindPFlag("listen_addr", flags.Lookup("listen"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("upstream.mode", flags.Lookup("upstream-mode"))
	_ = v.BindPFlag("rate.store", flags.Lookup("rate-store"))
	return cmd
}

func run(parent context.Context, cfg config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream_mode", cfg.Upstream.Mode),
		zap.String("upstream_url", cfg.Upstream.URL),
	)
	logger.Info("rate",
		zap.Bool("enabled", cfg.Rate.Enabled),
		zap.Int("limit", cfg.Rate.Limit),
		zap.Duration("window", cfg.Rate.Window),
		zap.String("store", cfg.Rate.Store),
		zap.String("families", strings.Join(cfg.familyNames(), ",")),
		zap.String("identity", cfg.Identity.Mode),
	)
	logger.Info("rate-stats",
		zap.Bool("redis", cfg.Rate.Stats.Enabled),
		zap.String("bucket", cfg.Rate.Stats.Bucket),
		zap.Duration("ttl", cfg.Rate.Stats.TTL),
		zap.Bool("track_keys", cfg.Rate.Stats.TrackKeys),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.Concurrency.Max),
		zap.Duration("acquire_timeout", cfg.Concurrency.Timeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if gw.janitor != nil {
		g.Go(func() error {
			gw.janitor(gctx)
			return nil
		})
	}
	return g.Wait()
}
