// Package domain define os tipos do limiter de janela fixa: Key, Policy,
// Window, Decision e os contratos WindowStore, StatsStore e SlotPool.
//
// Não depende de net/http nem de implementações concretas; Window.Consume
// é a regra pura de admissão usada pelo store em memória.
package domain
