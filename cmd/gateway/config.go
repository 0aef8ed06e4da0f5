package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit/domain"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type config struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	LogLevel       string `mapstructure:"log_level"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`

	Upstream    upstreamConfig    `mapstructure:"upstream"`
	OpenAI      openAIConfig      `mapstructure:"openai"`
	Rate        rateConfig        `mapstructure:"rate"`
	Identity    identityConfig    `mapstructure:"identity"`
	Concurrency concurrencyConfig `mapstructure:"concurrency"`
}

type upstreamConfig struct {
	// Mode: static, proxy ou openai.
	Mode    string        `mapstructure:"mode"`
	URL     string        `mapstructure:"url"`
	Answer  string        `mapstructure:"answer"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type openAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	MaxTokens    int64  `mapstructure:"max_tokens"`
}

type rateConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Limit             int           `mapstructure:"limit"`
	Window            time.Duration `mapstructure:"window"`
	Store             string        `mapstructure:"store"`
	FailureRetryAfter time.Duration `mapstructure:"failure_retry_after"`

	Redis redisConfig `mapstructure:"redis"`
	Stats statsConfig `mapstructure:"stats"`

	// Families sobrescreve a política por família (só via arquivo).
	Families map[string]policyConfig `mapstructure:"families"`
}

type redisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type statsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	Bucket        string        `mapstructure:"bucket"`
	TrackKeys     bool          `mapstructure:"track_keys"`
}

type policyConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type identityConfig struct {
	// Mode: jwt ou header.
	Mode      string `mapstructure:"mode"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Header    string `mapstructure:"header"`
}

type concurrencyConfig struct {
	Max        int           `mapstructure:"max"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryAfter time.Duration `mapstructure:"retry_after"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", true)

	v.SetDefault("upstream.mode", "static")
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.answer", "The concierge is in demo mode.")
	v.SetDefault("upstream.rps", 0)
	v.SetDefault("upstream.burst", 1)
	v.SetDefault("upstream.timeout", 30*time.Second)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.system_prompt", "")
	v.SetDefault("openai.max_tokens", 0)

	v.SetDefault("rate.enabled", true)
	v.SetDefault("rate.limit", domain.DefaultPolicy.Limit)
	v.SetDefault("rate.window", domain.DefaultPolicy.Window)
	v.SetDefault("rate.store", "memory")
	v.SetDefault("rate.failure_retry_after", time.Second)
	v.SetDefault("rate.redis.addr", "")
	v.SetDefault("rate.redis.password", "")
	v.SetDefault("rate.redis.db", 0)
	v.SetDefault("rate.redis.prefix", "ratelimit:window")

	v.SetDefault("rate.stats.enabled", false)
	v.SetDefault("rate.stats.redis_addr", "")
	v.SetDefault("rate.stats.redis_password", "")
	v.SetDefault("rate.stats.redis_db", 0)
	v.SetDefault("rate.stats.prefix", "ratelimit:stats")
	v.SetDefault("rate.stats.ttl", 24*time.Hour)
	v.SetDefault("rate.stats.bucket", "minute")
	v.SetDefault("rate.stats.track_keys", false)

	v.SetDefault("identity.mode", "jwt")
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.header", "X-User-Id")

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", 0)
	v.SetDefault("concurrency.retry_after", time.Second)
}

// loadConfig lê defaults, arquivo opcional e variáveis de ambiente (rate.stats.ttl -> RATE_STATS_TTL).
func loadConfig(v *viper.Viper, file string) (config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("identity.jwt_secret", "JWT_SECRET", "IDENTITY_JWT_SECRET")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Upstream.Mode = strings.ToLower(strings.TrimSpace(cfg.Upstream.Mode))
	cfg.Rate.Store = strings.ToLower(strings.TrimSpace(cfg.Rate.Store))
	cfg.Identity.Mode = strings.ToLower(strings.TrimSpace(cfg.Identity.Mode))

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	switch c.Upstream.Mode {
	case "static":
	case "proxy":
		if strings.TrimSpace(c.Upstream.URL) == "" {
			return errors.New("UPSTREAM_URL is required when UPSTREAM_MODE=proxy")
		}
	case "openai":
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return errors.New("OPENAI_API_KEY is required when UPSTREAM_MODE=openai")
		}
	default:
		return fmt.Errorf("UPSTREAM_MODE must be static, proxy or openai (got %q)", c.Upstream.Mode)
	}
	if c.Upstream.RPS < 0 {
		return errors.New("UPSTREAM_RPS must be >= 0")
	}
	if c.Upstream.RPS > 0 && c.Upstream.Burst <= 0 {
		return errors.New("UPSTREAM_BURST must be > 0")
	}

	if c.Rate.Limit <= 0 {
		return errors.New("RATE_LIMIT must be > 0")
	}
	if c.Rate.Window <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	switch c.Rate.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Rate.Redis.Addr) == "" {
			return errors.New("RATE_REDIS_ADDR is required when RATE_STORE=redis")
		}
	default:
		return fmt.Errorf("RATE_STORE must be memory or redis (got %q)", c.Rate.Store)
	}
	if c.Rate.Stats.Enabled && strings.TrimSpace(c.Rate.Stats.RedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	for family, p := range c.Rate.Families {
		if !(domain.Policy{Limit: p.Limit, Window: p.Window}).Valid() {
			return fmt.Errorf("rate.families.%s: limit and window must be > 0", family)
		}
	}

	switch c.Identity.Mode {
	case "jwt":
		if strings.TrimSpace(c.Identity.JWTSecret) == "" {
			return errors.New("JWT_SECRET is required when IDENTITY_MODE=jwt")
		}
	case "header":
		if strings.TrimSpace(c.Identity.Header) == "" {
			return errors.New("IDENTITY_HEADER is required when IDENTITY_MODE=header")
		}
	default:
		return fmt.Errorf("IDENTITY_MODE must be jwt or header (got %q)", c.Identity.Mode)
	}

	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return nil
}

// policies monta as políticas; a família do concierge usa RATE_LIMIT/RATE_WINDOW.
func (c config) policies() domain.Policies {
	p := domain.Policies{
		contract.FamilyConcierge: {Limit: c.Rate.Limit, Window: c.Rate.Window},
	}
	for family, fc := range c.Rate.Families {
		p[family] = domain.Policy{Limit: fc.Limit, Window: fc.Window}
	}
	return p
}

func (c config) familyNames() []string {
	names := make([]string, 0, len(c.policies()))
	for f := range c.policies() {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}
