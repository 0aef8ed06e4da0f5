package infra

import (
	"context"
	"errors"

	"concierge-gateway/middleware/ratelimit/domain"
)

// FanoutStats repassa cada evento a todos os stores e junta os erros.
type FanoutStats []domain.StatsStore

func (f FanoutStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
