// Package cooldown implementa o lado cliente do throttling do concierge.
//
// Um Controller por família de endpoint guarda o estado Idle, CoolingDown ou
// Error, mais a condição de requisição em andamento (busy). A contagem
// regressiva vem só do retryAfterSeconds do servidor; nunca é adivinhada.
// Registry compartilha o mesmo Controller entre todos os pontos de disparo.
package cooldown
