// Package infra contém as implementações concretas dos contratos de domain.
//
//   - MemoryStore: janelas fixas em memória com janitor
//   - RedisWindowStore: janelas compartilhadas entre instâncias (script Lua)
//   - ChanPool: semáforo para chamadas simultâneas ao provedor
//   - MemoryStatsStore, RedisStatsStore, PrometheusStatsStore, FanoutStats
package infra
