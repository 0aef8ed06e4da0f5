package infra

import (
	"context"
	"sync"
	"time"

	"concierge-gateway/middleware/ratelimit/domain"
)

// MemoryStore guarda janelas fixas em memória, por processo, com limpeza
// periódica de janelas vencidas. Para várias instâncias use RedisWindowStore.
type MemoryStore struct {
	mu           sync.Mutex
	windows      map[domain.Key]*domain.Window
	idleTTL      time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
}

type StoreOption func(*MemoryStore)

// WithIdleTTL define por quanto tempo uma janela vencida fica no mapa antes da limpeza.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithStoreClock troca o relógio usado pelo janitor.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.clock = clock }
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:      make(map[domain.Key]*domain.Window),
		idleTTL:      5 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndConsume implementa domain.WindowStore.
func (s *MemoryStore) CheckAndConsume(ctx context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &domain.Window{}
		s.windows[key] = w
	}
	return w.Consume(now, policy), nil
}

// Len devolve o número de janelas em memória.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Cleanup remove janelas vencidas há mais de idleTTL.
func (s *MemoryStore) Cleanup() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, w := range s.windows {
		if now.Sub(w.StartedAt.Add(w.Duration)) >= s.idleTTL {
			delete(s.windows, k)
		}
	}
}

// RunJanitor limpa janelas periodicamente até o ctx encerrar.
func (s *MemoryStore) RunJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cleanup()
		}
	}
}
