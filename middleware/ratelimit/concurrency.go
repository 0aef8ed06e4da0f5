package ratelimit

import (
	"net/http"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit/application"
	"concierge-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	// RetryAfter sugerido ao cliente quando não há vaga.
	RetryAfter time.Duration
}

// ConcurrencyMiddleware limita quantas chamadas ao provedor rodam ao mesmo tempo.
// Max <= 0 desativa o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				WriteError(w, http.StatusServiceUnavailable, contract.ErrorResponse{
					Error:             contract.CodeUpstreamBusy,
					Message:           "the concierge is busy, try again shortly",
					RetryAfterSeconds: contract.CeilSeconds(opts.RetryAfter),
				})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
