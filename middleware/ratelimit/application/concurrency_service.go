package application

import (
	"context"
	"time"

	"concierge-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService controla quantas chamadas ao provedor de IA rodam ao
// mesmo tempo, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta reservar uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx encerrar.
//   - AcquireTimeout > 0: desiste após o timeout.
//
// Com ok=false nenhuma vaga foi reservada e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
