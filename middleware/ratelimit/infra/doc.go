// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - MemoryWindowStore / RedisWindowStore: contadores da janela fixa
//   - BucketStore: token bucket por chave (golang.org/x/time/rate) para o /login
//   - ChanPool: semáforo simples para limite de requisições em voo
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
package infra
