package infra

import (
	"context"

	"concierge-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como métricas.
// Labels: family e reason (sem identidade, para manter a cardinalidade baixa).
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
	remaining *prometheus.HistogramVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	s := &PrometheusStatsStore{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concierge_ratelimit_decisions_total",
				Help: "Rate limit decisions by endpoint family and reason.",
			},
			[]string{"family", "reason"},
		),
		remaining: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concierge_ratelimit_remaining",
				Help:    "Remaining quota observed on admitted requests.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"family"},
		),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.remaining} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	reason := string(ev.Reason)
	if reason == "" {
		reason = "unknown"
	}
	s.decisions.WithLabelValues(ev.Family, reason).Inc()
	if ev.Allowed {
		s.remaining.WithLabelValues(ev.Family).Observe(float64(ev.Remaining))
	}
	return nil
}
