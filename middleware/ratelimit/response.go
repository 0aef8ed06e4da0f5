package ratelimit

import (
	"encoding/json"
	"net/http"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit/domain"
)

// WriteJSON grava v como JSON com o status informado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError grava o envelope de erro padrão.
func WriteError(w http.ResponseWriter, status int, body contract.ErrorResponse) {
	if body.RetryAfterSeconds > 0 {
		w.Header().Set(contract.HeaderRetryAfter, formatInt(body.RetryAfterSeconds))
	}
	WriteJSON(w, status, body)
}

func writeThrottle(w http.ResponseWriter, dec domain.Decision) {
	secs := dec.RetryAfterSeconds()
	w.Header().Set(contract.HeaderRetryAfter, formatInt(secs))
	WriteJSON(w, http.StatusTooManyRequests, contract.ThrottleResponse{
		Error:             contract.CodeRateLimited,
		RetryAfterSeconds: secs,
		Limit:             dec.Limit,
		Remaining:         0,
	})
}

// Quota converte uma decisão admitida no bloco de quota das respostas de sucesso.
func Quota(dec domain.Decision) *contract.ThrottleResponse {
	return &contract.ThrottleResponse{
		RetryAfterSeconds: 0,
		Limit:             dec.Limit,
		Remaining:         dec.Remaining,
	}
}
