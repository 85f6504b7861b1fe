package infra

import (
	"context"
	"sync"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"
)

// MemoryWindowStore guarda os contadores da janela fixa em memória.
//
// Cada chave tem o próprio mutex; não existe lock global entre identidades.
// Entradas expiradas são reaproveitadas no próximo acesso (reset preguiçoso),
// sem goroutine de limpeza.
type MemoryWindowStore struct {
	entries sync.Map // domain.Key -> *windowEntry
}

type windowEntry struct {
	mu sync.Mutex
	w  domain.Window
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{}
}

// Admit implementa domain.CounterStore.
func (s *MemoryWindowStore) Admit(_ context.Context, key domain.Key, now time.Time, limit domain.Limit) (domain.Decision, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		v, _ = s.entries.LoadOrStore(key, &windowEntry{})
	}
	ent := v.(*windowEntry)

	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.w.Admit(now, limit), nil
}

// WindowState é a fotografia de um contador, exposta em /admin/status.
type WindowState struct {
	Key   domain.Key
	Count int
	TTL   time.Duration
}

// Snapshot lista os contadores com janela ainda aberta em now.
func (s *MemoryWindowStore) Snapshot(now time.Time) []WindowState {
	var out []WindowState
	s.entries.Range(func(k, v any) bool {
		ent := v.(*windowEntry)
		ent.mu.Lock()
		w := ent.w
		ent.mu.Unlock()

		if w.Count > 0 && now.Before(w.End) {
			out = append(out, WindowState{Key: k.(domain.Key), Count: w.Count, TTL: w.End.Sub(now)})
		}
		return true
	})
	return out
}
