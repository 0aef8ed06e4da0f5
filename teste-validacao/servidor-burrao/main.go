// Servidor de IA falso, usado como UPSTREAM_URL nos testes manuais do gateway (UPSTREAM_MODE=proxy).
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/logging"

	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewServer("servidor-burrao", "debug")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// SLOW=2s simula um provedor lento para exercitar CONCURRENCY_MAX
	var slow time.Duration
	if v := os.Getenv("SLOW"); v != "" {
		if slow, err = time.ParseDuration(v); err != nil {
			logger.Fatal("invalid SLOW", zap.Error(err))
		}
	}

	http.HandleFunc(contract.ConciergePath, func(w http.ResponseWriter, r *http.Request) {
		var req contract.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(contract.ErrorResponse{Error: contract.CodeInvalidRequest, Message: "prompt is required"})
			return
		}
		time.Sleep(slow)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(contract.AskResponse{
			Answer: fmt.Sprintf("Você perguntou %q. Resposta do burrão: tente o restaurante da esquina.", req.Prompt),
		})
		logger.Info("concierge request",
			zap.String("request_id", r.Header.Get(contract.HeaderRequestID)),
			zap.String("remote", r.RemoteAddr),
			zap.Int("prompt_len", len(req.Prompt)),
		)
	})

	logger.Info("fake concierge listening", zap.String("url", "http://localhost:8081"+contract.ConciergePath))
	if err := http.ListenAndServe(":8081", nil); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
