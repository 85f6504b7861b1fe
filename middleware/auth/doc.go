// Package auth fornece os adapters HTTP da autenticação por bearer token:
// emissão em POST /login, validação em cada request proxiada e restrição
// por subject nas rotas administrativas.
//
//   - domain: Token, Issuer/Verifier e erros sentinela
//   - infra: JWT HS256 (golang-jwt)
//   - auth (este pacote): middlewares e handler de login
package auth
