// Package domain define o registro de upstreams e o contrato de seleção.
//
// O estado de cada endpoint (saúde, conexões ativas, falhas, latência, breaker)
// é atômico por endpoint; nenhum lock atravessa endpoints.
package domain
