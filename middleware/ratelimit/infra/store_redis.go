package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"concierge-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// Janela fixa atômica: devolve {admitido, contagem, pttl}.
// Chave sem TTL (ou ausente) é tratada como janela nova.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ttl = redis.call('PTTL', KEYS[1])
local count = 0
if ttl < 0 then
  redis.call('DEL', KEYS[1])
  ttl = window
else
  count = tonumber(redis.call('GET', KEYS[1]) or '0')
end
if count < limit then
  count = redis.call('INCR', KEYS[1])
  if count == 1 then
    redis.call('PEXPIRE', KEYS[1], window)
    ttl = window
  end
  return {1, count, ttl}
end
return {0, count, ttl}
`)

// ErrUnexpectedReply indica que o script devolveu um formato inesperado.
var ErrUnexpectedReply = errors.New("ratelimit: unexpected redis reply")

// RedisWindowStore compartilha as janelas entre instâncias do gateway.
//
// O relógio da janela é o TTL do Redis; o `now` recebido só posiciona ResetAt.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
}

type RedisStoreOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisStoreOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisStoreOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, prefix: "ratelimit:window"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndConsume implementa domain.WindowStore.
func (s *RedisWindowStore) CheckAndConsume(ctx context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.Decision, error) {
	if s == nil || s.rdb == nil {
		return domain.Decision{}, errors.New("ratelimit: redis store not configured")
	}

	windowMs := policy.Window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.prefix + ":" + string(key)}, policy.Limit, windowMs).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("ratelimit: redis check: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, ErrUnexpectedReply
	}

	admitted, count, ttlMs := res[0] == 1, int(res[1]), res[2]
	if ttlMs <= 0 {
		ttlMs = windowMs
	}
	ttl := time.Duration(ttlMs) * time.Millisecond
	resetAt := now.Add(ttl)

	if admitted {
		return domain.Decision{
			Allowed:   true,
			Reason:    domain.ReasonAdmitted,
			Limit:     policy.Limit,
			Remaining: max(policy.Limit-count, 0),
			ResetAt:   resetAt,
		}, nil
	}
	return domain.Decision{
		Allowed:    false,
		Reason:     domain.ReasonRateLimited,
		Limit:      policy.Limit,
		RetryAfter: ttl,
		ResetAt:    resetAt,
	}, nil
}
