package application

import (
	"context"
	"strings"
	"time"

	"concierge-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Falha fechado: sem identidade ou sem store a requisição é negada.
type Service struct {
	Store    domain.WindowStore
	Policies domain.Policies
	Clock    func() time.Time
	Logger   *zap.Logger

	// FailureRetryAfter é sugerido ao cliente quando o store falha.
	FailureRetryAfter time.Duration
}

// Decide consome uma unidade da janela (family, identity).
// Nunca devolve erro: falhas viram uma Decision negada com Reason explícito.
func (s Service) Decide(ctx context.Context, family, identity string) domain.Decision {
	policy := s.Policies.Lookup(family)

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.Decision{Reason: domain.ReasonUnauthenticated, Limit: policy.Limit}
	}
	if s.FailureRetryAfter <= 0 {
		s.FailureRetryAfter = 1 * time.Second
	}
	if s.Store == nil {
		return s.unavailable(policy)
	}

	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}

	key := domain.NewKey(family, identity)
	dec, err := s.Store.CheckAndConsume(ctx, key, policy, now)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rate limit store failed, denying request",
				zap.String("family", family),
				zap.Error(err),
			)
		}
		return s.unavailable(policy)
	}
	return dec
}

func (s Service) unavailable(policy domain.Policy) domain.Decision {
	return domain.Decision{
		Reason:     domain.ReasonUnavailable,
		Limit:      policy.Limit,
		RetryAfter: s.FailureRetryAfter,
	}
}
