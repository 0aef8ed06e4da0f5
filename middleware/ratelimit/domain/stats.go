package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do limiter.
//
// Cuidado com cardinalidade: Key e Path sem controle explodem o número de
// séries/chaves em Redis ou Prometheus.
type StatsEvent struct {
	Key    Key
	Family string
	Reason Reason

	Allowed   bool
	Remaining int

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas do limiter.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
