package infra

import (
	"context"
	"sync"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BucketStore mantém um token bucket (x/time/rate) por chave, com limpeza
// periódica das chaves ociosas. Serve o throttle do /login.
type BucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucketEntry struct {
	lim      *Bucket
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func WithBucketClock(now func() time.Time) BucketOption {
	return func(s *BucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64                { return float64(s.rps) }
func (s *BucketStore) Burst() int                  { return s.burst }
func (s *BucketStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore.
func (s *BucketStore) Get(key domain.Key) domain.Limiter {
	return s.bucket(string(key))
}

func (s *BucketStore) bucket(key string) *Bucket {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	b := &Bucket{lim: rate.NewLimiter(s.rps, s.burst), now: s.now}
	s.entries[key] = &bucketEntry{lim: b, lastSeen: now}
	return b
}

func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// Bucket adapta *rate.Limiter para domain.Limiter e domain.RetryHinter.
type Bucket struct {
	lim *rate.Limiter
	now func() time.Time
}

func (b *Bucket) Allow() bool { return b.lim.AllowN(b.now(), 1) }

// RetryIn calcula quanto falta para o próximo token sem consumi-lo.
func (b *Bucket) RetryIn() time.Duration {
	now := b.now()
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}
