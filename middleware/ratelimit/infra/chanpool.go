package infra

import (
	"context"
	"sync"

	"concierge-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	slots chan struct{}
}

// NewChanPool cria um semáforo com `max` vagas para chamadas ao provedor.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{slots: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.slots }) }, true
	case <-ctx.Done():
		return nil, false
	}
}
