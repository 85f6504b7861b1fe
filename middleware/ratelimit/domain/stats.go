package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves no Redis).
type StatsEvent struct {
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type Totals struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// StatsReader expõe os totais acumulados para o /admin/status.
type StatsReader interface {
	Totals(ctx context.Context) (Totals, error)
}
