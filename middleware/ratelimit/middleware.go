package ratelimit

import (
	"context"
	"net/http"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit/application"
	"concierge-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

type Options struct {
	Store    domain.WindowStore
	Stats    domain.StatsStore
	Policies domain.Policies
	// Family é a família de endpoints protegida (padrão: ai-concierge).
	Family   string
	Identity IdentityFunc

	Clock  func() time.Time
	Logger *zap.Logger
	// RequestID lê o id de correlação do contexto (ex.: chi middleware.GetReqID).
	RequestID func(ctx context.Context) string

	// FailureRetryAfter é o Retry-After enviado quando o store está indisponível.
	FailureRetryAfter time.Duration
}

type ctxKey int

const (
	decisionKey ctxKey = iota
	identityKey
)

// DecisionFrom devolve a decisão de admissão anexada pelo Middleware.
func DecisionFrom(ctx context.Context) (domain.Decision, bool) {
	dec, ok := ctx.Value(decisionKey).(domain.Decision)
	return dec, ok
}

// IdentityFrom devolve a identidade usada na decisão.
func IdentityFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}

// Middleware aplica a janela fixa antes de chegar ao handler (ex.: chamada ao provedor de IA).
//
// Respostas:
//   - admitido: headers X-RateLimit-* e a decisão no contexto
//   - 429: Retry-After + ThrottleResponse
//   - 401: sem identidade, nenhuma cota consumida
//   - 503: store indisponível (nunca libera sem contar)
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Family == "" {
		opts.Family = contract.FamilyConcierge
	}
	if opts.Identity == nil {
		opts.Identity = HeaderIdentity(DefaultIdentityHeader)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestID == nil {
		opts.RequestID = func(context.Context) string { return "" }
	}

	svc := application.Service{
		Store:             opts.Store,
		Policies:          opts.Policies,
		Clock:             opts.Clock,
		Logger:            opts.Logger,
		FailureRetryAfter: opts.FailureRetryAfter,
	}
	log := opts.Logger.With(zap.String("family", opts.Family))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := opts.RequestID(ctx)

			identity, err := opts.Identity(r)
			if err != nil {
				log.Debug("request without identity", zap.String("request_id", reqID), zap.Error(err))
				identity = ""
			}

			dec := svc.Decide(ctx, opts.Family, identity)
			now := opts.Clock()
			opts.record(r, identity, dec, now)

			switch {
			case dec.Allowed:
				setQuotaHeaders(w.Header(), dec, now)
				ctx = context.WithValue(ctx, decisionKey, dec)
				ctx = context.WithValue(ctx, identityKey, identity)
				next.ServeHTTP(w, r.WithContext(ctx))

			case dec.Reason == domain.ReasonRateLimited:
				setQuotaHeaders(w.Header(), dec, now)
				log.Info("rate limited",
					zap.String("request_id", reqID),
					zap.Int("retry_after_seconds", dec.RetryAfterSeconds()),
				)
				writeThrottle(w, dec)

			case dec.Reason == domain.ReasonUnauthenticated:
				w.Header().Set("WWW-Authenticate", `Bearer realm="concierge"`)
				WriteError(w, http.StatusUnauthorized, contract.ErrorResponse{
					Error:     contract.CodeUnauthenticated,
					Message:   "sign in to use the concierge",
					RequestID: reqID,
				})

			default:
				WriteError(w, http.StatusServiceUnavailable, contract.ErrorResponse{
					Error:             contract.CodeLimiterUnavailable,
					Message:           "the concierge is temporarily unavailable",
					RetryAfterSeconds: dec.RetryAfterSeconds(),
					RequestID:         reqID,
				})
			}
		})
	}
}

func (o Options) record(r *http.Request, identity string, dec domain.Decision, now time.Time) {
	if o.Stats == nil {
		return
	}
	ev := domain.StatsEvent{
		Family:    o.Family,
		Reason:    dec.Reason,
		Allowed:   dec.Allowed,
		Remaining: dec.Remaining,
		Method:    r.Method,
		Path:      r.URL.Path,
		At:        now,
	}
	if identity != "" {
		ev.Key = domain.NewKey(o.Family, identity)
	}
	if err := o.Stats.Record(r.Context(), ev); err != nil {
		o.Logger.Debug("stats record failed", zap.Error(err))
	}
}
