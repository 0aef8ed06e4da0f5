package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit"

	"go.uber.org/zap"
)

// Handler atende POST /api/ai/concierge depois do limiter.
type Handler struct {
	Provider Provider
	Logger   *zap.Logger

	// Timeout limita a chamada ao provedor (padrão 30s).
	Timeout time.Duration
	// MaxPromptRunes rejeita prompts maiores (padrão 2000).
	MaxPromptRunes int
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxPromptRunes <= 0 {
		h.MaxPromptRunes = 2000
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		ratelimit.WriteError(w, http.StatusMethodNotAllowed, contract.ErrorResponse{
			Error: contract.CodeInvalidRequest, Message: "use POST",
		})
		return
	}

	var req contract.AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		ratelimit.WriteError(w, http.StatusBadRequest, contract.ErrorResponse{
			Error: contract.CodeInvalidRequest, Message: "body must be JSON with a prompt",
		})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" || utf8.RuneCountInString(prompt) > h.MaxPromptRunes {
		ratelimit.WriteError(w, http.StatusBadRequest, contract.ErrorResponse{
			Error: contract.CodeInvalidRequest, Message: "prompt is empty or too long",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	started := time.Now()
	answer, err := h.Provider.Ask(ctx, prompt)
	if err != nil {
		if errors.Is(r.Context().Err(), context.Canceled) {
			// cliente desistiu, não há para quem responder
			return
		}
		log.Warn("concierge upstream failed",
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		ratelimit.WriteError(w, http.StatusBadGateway, contract.ErrorResponse{
			Error: contract.CodeUpstreamFailed, Message: "the concierge could not answer, try again",
		})
		return
	}

	resp := contract.AskResponse{Answer: answer}
	if d, ok := ratelimit.DecisionFrom(r.Context()); ok {
		resp.Quota = ratelimit.Quota(d)
	}
	log.Debug("concierge answered", zap.Duration("elapsed", time.Since(started)))
	ratelimit.WriteJSON(w, http.StatusOK, resp)
}
