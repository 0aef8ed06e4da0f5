package upstream

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit"

	"go.uber.org/zap"
)

// NewProxy encaminha a requisição admitida para um serviço de IA externo.
// Falhas de conexão viram 502 com o envelope JSON padrão.
func NewProxy(rawURL string, logger *zap.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme and host are required", rawURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		ratelimit.WriteError(w, http.StatusBadGateway, contract.ErrorResponse{
			Error:   contract.CodeUpstreamFailed,
			Message: "the concierge could not be reached",
		})
	}
	return proxy, nil
}
