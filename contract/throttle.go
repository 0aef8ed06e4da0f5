package contract

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FamilyConcierge é a família de endpoints protegida pelo limiter.
const FamilyConcierge = "ai-concierge"

// ConciergePath é a rota HTTP do concierge.
const ConciergePath = "/api/ai/concierge"

const (
	HeaderRetryAfter = "Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRequestID  = "X-Request-Id"
)

// Códigos de erro do envelope JSON.
const (
	CodeRateLimited        = "rate_limited"
	CodeUnauthenticated    = "unauthenticated"
	CodeLimiterUnavailable = "limiter_unavailable"
	CodeUpstreamBusy       = "upstream_busy"
	CodeUpstreamFailed     = "upstream_failed"
	CodeInvalidRequest     = "invalid_request"
	CodeInternal           = "internal_error"
)

// ThrottleResponse é o estado de quota comunicado ao cliente.
//
// Em um 429, Error vale "rate_limited" e Remaining é sempre 0.
// Em respostas de sucesso aparece sem Error, embutido em AskResponse.
type ThrottleResponse struct {
	Error             string `json:"error,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
	Limit             int    `json:"limit"`
	Remaining         int    `json:"remaining"`
}

// ErrorResponse é o envelope para erros que não são de quota.
type ErrorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	RequestID         string `json:"requestId,omitempty"`
}

// AskRequest é o corpo aceito em POST /api/ai/concierge.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// AskResponse é a resposta de sucesso do concierge.
type AskResponse struct {
	Answer string            `json:"answer"`
	Quota  *ThrottleResponse `json:"quota,omitempty"`
}

// ParseRetryAfter interpreta o header Retry-After em segundos ou HTTP-date.
// Retorna ok=false quando o valor está ausente ou inválido.
func ParseRetryAfter(v string, now time.Time) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return secs, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return CeilSeconds(at.Sub(now)), true
}

// CeilSeconds arredonda a duração para cima em segundos inteiros; negativos viram 0.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int(secs)
}
