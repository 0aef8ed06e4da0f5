// Package upstream faz a chamada ao provedor de IA depois que o limiter admitiu
// a requisição: Provider (OpenAI, estático), ritmo global com x/time/rate,
// modo proxy reverso e o handler HTTP do concierge.
package upstream
