package domain

// Camada de domínio do rate limit.
//
// Janela fixa por chave (identidade + família de endpoint), sem dependência de net/http.

//go:generate mockgen -destination=mock/window_store.go -package=mock concierge-gateway/middleware/ratelimit/domain WindowStore,StatsStore

import (
	"context"
	"strings"
	"time"

	"concierge-gateway/contract"
)

// Key identifica uma janela: família de endpoint + identidade autenticada.
type Key string

// NewKey compõe a chave "família:identidade".
func NewKey(family, identity string) Key {
	return Key(strings.TrimSpace(family) + ":" + strings.TrimSpace(identity))
}

// Policy é a cota de uma família: Limit requisições a cada Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy vale para famílias sem configuração explícita.
var DefaultPolicy = Policy{Limit: 5, Window: 60 * time.Second}

// Valid indica se a política pode ser aplicada.
func (p Policy) Valid() bool { return p.Limit > 0 && p.Window > 0 }

// Policies mapeia família -> política.
type Policies map[string]Policy

// Lookup devolve a política da família ou DefaultPolicy.
func (ps Policies) Lookup(family string) Policy {
	if p, ok := ps[family]; ok && p.Valid() {
		return p
	}
	return DefaultPolicy
}

// Reason explica a decisão.
type Reason string

const (
	ReasonAdmitted        Reason = "admitted"
	ReasonRateLimited     Reason = "rate_limited"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonUnavailable     Reason = "limiter_unavailable"
)

type Decision struct {
	Allowed bool
	Reason  Reason

	Limit     int
	Remaining int

	// RetryAfter é quanto falta para a janela reabrir. Zero quando admitido.
	RetryAfter time.Duration
	// ResetAt é o fim da janela corrente.
	ResetAt time.Time
}

// RetryAfterSeconds arredonda RetryAfter para cima. Uma rejeição nunca devolve 0.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := contract.CeilSeconds(d.RetryAfter)
	if secs < 1 {
		return 1
	}
	return secs
}

// ResetSeconds é o tempo até o fim da janela, em segundos, relativo a now.
func (d Decision) ResetSeconds(now time.Time) int {
	if d.ResetAt.IsZero() {
		return 0
	}
	return contract.CeilSeconds(d.ResetAt.Sub(now))
}

// Window é o contador de uma chave.
//
// Invariante: 0 <= Count <= Limit.
type Window struct {
	StartedAt time.Time
	Count     int
	Limit     int
	Duration  time.Duration
}

// Expired indica se a janela já terminou em now.
func (w Window) Expired(now time.Time) bool {
	return now.Sub(w.StartedAt) >= w.Duration
}

// Consume aplica uma requisição à janela e devolve a decisão.
// Uma janela zerada ou vencida é reaberta em now antes da contagem.
func (w *Window) Consume(now time.Time, p Policy) Decision {
	w.Limit = p.Limit
	w.Duration = p.Window
	if w.StartedAt.IsZero() || w.Expired(now) {
		w.StartedAt = now
		w.Count = 0
	}

	resetAt := w.StartedAt.Add(w.Duration)
	if w.Count < w.Limit {
		w.Count++
		return Decision{
			Allowed:   true,
			Reason:    ReasonAdmitted,
			Limit:     w.Limit,
			Remaining: w.Limit - w.Count,
			ResetAt:   resetAt,
		}
	}
	return Decision{
		Allowed:    false,
		Reason:     ReasonRateLimited,
		Limit:      w.Limit,
		Remaining:  0,
		RetryAfter: resetAt.Sub(now),
		ResetAt:    resetAt,
	}
}

// WindowStore guarda as janelas. CheckAndConsume precisa ser atômico por chave.
type WindowStore interface {
	CheckAndConsume(ctx context.Context, key Key, policy Policy, now time.Time) (Decision, error)
}
