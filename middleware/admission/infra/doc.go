// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore / RedisWindowStore: janela deslizante por chave
//   - BotDetector, Shield: classificadores de requisições abusivas
//   - CadenceTracker: token bucket por cliente usando golang.org/x/time/rate
//   - SemaphorePool: limite de concorrência com golang.org/x/sync/semaphore
//   - Memory/Redis/Kafka stats: registro das decisões de admissão
package infra
