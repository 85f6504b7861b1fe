package infra

import (
	"context"
	"sync"

	"intelligent-gateway/middleware/ratelimit/domain"
)

// MemoryStatsStore acumula as decisões do rate limit em memória.
// Útil para testes e para o modo sem Redis.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   domain.Totals
	byRoute map[string]domain.Totals
	byKey   map[domain.Key]domain.Totals

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]domain.Totals),
		byKey:   make(map[domain.Key]domain.Totals),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bump(t domain.Totals, allowed bool) domain.Totals {
	if allowed {
		t.Allowed++
	} else {
		t.Denied++
	}
	return t
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = bump(s.total, ev.Allowed)
	s.byRoute[route] = bump(s.byRoute[route], ev.Allowed)
	if s.trackKeys {
		s.byKey[ev.Key] = bump(s.byKey[ev.Key], ev.Allowed)
	}
	return nil
}

// Totals implementa domain.StatsReader.
func (s *MemoryStatsStore) Totals(context.Context) (domain.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

func (s *MemoryStatsStore) ByRoute() map[string]domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Totals, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]domain.Totals, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
