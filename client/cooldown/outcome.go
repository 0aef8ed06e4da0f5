package cooldown

import (
	"context"
	"time"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeFailure
)

// Outcome é o resultado de uma requisição já classificada.
type Outcome struct {
	Kind OutcomeKind

	// RetryAfter vem de retryAfterSeconds em OutcomeRateLimited.
	RetryAfter time.Duration
	Limit      int
	Remaining  int

	Status    int
	Retryable bool
	Message   string
	Answer    string
	Err       error
}

// Requester dispara a requisição protegida. Um erro significa falha de transporte
// (rede, timeout, cancelamento); respostas HTTP chegam como Outcome.
//
// Retry reenvia exatamente o mesmo Requester.
type Requester interface {
	Do(ctx context.Context) (Outcome, error)
}

//go:generate mockgen -destination=mock/requester.go -package=mock concierge-gateway/client/cooldown Requester

type RequesterFunc func(ctx context.Context) (Outcome, error)

func (f RequesterFunc) Do(ctx context.Context) (Outcome, error) { return f(ctx) }

const (
	MessageNetwork = "Network error, you may retry now"
	MessageTimeout = "The request timed out, you may retry now"
	MessageServer  = "The concierge is having trouble, you may retry now"
	MessageAuth    = "Your session has expired, sign in again"
)
