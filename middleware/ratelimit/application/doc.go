// Package application contém os casos de uso do limiter e do limite de
// concorrência das chamadas ao provedor de IA.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, family, identity) retorna uma Decision com quota.
package application
