package application

import (
	"context"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantas requisições ficam em voo no gateway,
// com espera opcional por uma vaga. Não sabe nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta reservar uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx do cliente encerrar.
//   - AcquireTimeout > 0: desiste depois do timeout com domain.ErrNoSlot.
//
// Se o próprio ctx do cliente foi cancelado, devolve ctx.Err().
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, domain.ErrNoSlot
}
