package application

import (
	"context"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit de janela fixa.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.CounterStore
	Limit domain.Limit
	Clock domain.Clock
}

// Admit decide se a identidade pode seguir agora.
// Sem Store, tudo é permitido. Erros do store são devolvidos ao chamador.
func (s Service) Admit(ctx context.Context, key domain.Key) (domain.Decision, error) {
	limit := s.Limit.Normalize()
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: limit.Max, Remaining: limit.Max}, nil
	}

	now := time.Now
	if s.Clock != nil {
		now = s.Clock
	}
	return s.Store.Admit(ctx, key, now(), limit)
}

// ThrottleService decide com um token bucket por chave (usado no /login).
type ThrottleService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s ThrottleService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if h, ok := lim.(domain.RetryHinter); ok {
		if d := h.RetryIn(); d > 0 {
			retry = d
		}
	}
	return domain.Decision{Allowed: false, RetryAfter: domain.CeilSeconds(retry)}
}
