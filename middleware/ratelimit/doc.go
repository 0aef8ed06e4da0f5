// Package ratelimit fornece os adapters HTTP (net/http) do limiter de janela
// fixa e do limite de concorrência das chamadas ao provedor de IA.
//
// Camadas:
//
//   - domain: tipos e contratos (Window, Decision, WindowStore), sem net/http
//   - application: casos de uso (Decide, Acquire)
//   - infra: stores em memória e Redis, estatísticas, semáforo
//   - ratelimit (este pacote): identidade, headers, status e corpo JSON
//
// Fluxo no gateway:
//
//  1. Extrai a identidade (JWT bearer ou header confiável)
//  2. Consome uma unidade da janela (família + identidade)
//  3. Se negado responde 429 (cota), 401 (sem identidade) ou 503 (store fora)
//  4. Se admitido, publica X-RateLimit-* e chama o próximo handler
package ratelimit
