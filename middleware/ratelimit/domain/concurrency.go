package domain

import (
	"context"
	"errors"
)

// SlotPool representa um recurso com capacidade finita (ex: requisições em voo
// no gateway).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// ErrNoSlot indica que nenhuma vaga liberou dentro do tempo de espera.
var ErrNoSlot = errors.New("ratelimit: no concurrency slot available")
