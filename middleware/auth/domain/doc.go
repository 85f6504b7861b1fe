// Package domain define os tipos e erros da emissão/validação de tokens.
//
// Sem dependência de net/http nem da biblioteca de JWT.
package domain
