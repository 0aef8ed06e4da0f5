package upstream

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
)

// Provider responde a um prompt do concierge.
type Provider interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// ProviderFunc adapta uma função a Provider.
type ProviderFunc func(ctx context.Context, prompt string) (string, error)

func (f ProviderFunc) Ask(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// ErrEmptyAnswer indica que o provedor respondeu sem conteúdo.
var ErrEmptyAnswer = errors.New("upstream: empty answer")

// StaticProvider devolve sempre a mesma resposta. Útil para demo e testes.
type StaticProvider struct {
	Answer string
}

func (p StaticProvider) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	return p.Answer, nil
}

// pacedProvider limita o ritmo total de chamadas ao provedor (token bucket),
// independente das janelas por usuário.
type pacedProvider struct {
	next Provider
	lim  *rate.Limiter
}

// Paced envolve o provider com um token bucket de rps/burst.
// rps <= 0 devolve o provider sem alteração.
func Paced(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &pacedProvider{next: p, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *pacedProvider) Ask(ctx context.Context, prompt string) (string, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Ask(ctx, prompt)
}
