// Package contract define o formato de fio compartilhado entre o gateway e os
// clientes do concierge: corpo de throttle, envelope de erro, headers de quota
// e nomes das famílias de endpoint.
//
// Servidor e cliente importam os mesmos tipos, então o 429 produzido pelo
// middleware é exatamente o que o controller de cooldown interpreta.
package contract
