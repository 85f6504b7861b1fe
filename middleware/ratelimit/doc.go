// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: janela fixa, contratos dos stores, tipos de decisão (sem net/http)
//   - application: casos de uso (admit, throttle, acquire/timeout) sem net/http
//   - infra: stores em memória e Redis, token bucket, semáforo, estatísticas
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo nas rotas proxiadas:
//
//  1. Lê a identidade (subject do token, ou origem quando não há token)
//  2. Chama a camada application para obter a decisão da janela fixa
//  3. Se bloqueado, responde 429 com Retry-After; sem vaga de concorrência, 503
//  4. Se permitido, chama o próximo handler (seleção de upstream + proxy)
package ratelimit
