package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava as decisões em hashes do Redis:
//
//	<prefix>:total                  allowed/denied cumulativos (sem TTL)
//	<prefix>:minute:<yyyymmddhhmm>  série por minuto (com TTL)
//	<prefix>:route                  "<METHOD> <path>:<campo>"
//	<prefix>:key:<identidade>       opcional, com TTL
type RedisStatsStore struct {
	rdb *redis.Client

	prefix    string
	ttl       time.Duration
	bucket    string // "minute" (padrão) ou "none"
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(strings.TrimSpace(prefix), ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }
func (s *RedisStatsStore) routeKey() string { return s.prefix + ":route" }

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return s.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (s *RedisStatsStore) identityKey(k domain.Key) string {
	return s.prefix + ":key:" + string(k)
}

func statsField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// Record incrementa todos os hashes numa única pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := statsField(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	if s.bucket == "minute" {
		k := s.minuteKey(at)
		pipe.HIncrBy(ctx, k, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.routeKey(), route+":"+field, 1)
	}

	if key := domain.Key(strings.TrimSpace(string(ev.Key))); s.trackKeys && key != "" {
		k := s.identityKey(key)
		pipe.HIncrBy(ctx, k, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: record stats: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Totals implementa domain.StatsReader lendo o hash cumulativo.
func (s *RedisStatsStore) Totals(ctx context.Context) (domain.Totals, error) {
	return s.readTotals(ctx, s.totalKey())
}

// KeyTotals lê os contadores de uma identidade. Só há dados com trackKeys.
func (s *RedisStatsStore) KeyTotals(ctx context.Context, key domain.Key) (domain.Totals, error) {
	return s.readTotals(ctx, s.identityKey(key))
}

func (s *RedisStatsStore) readTotals(ctx context.Context, hash string) (domain.Totals, error) {
	vals, err := s.rdb.HGetAll(ctx, hash).Result()
	if err != nil {
		return domain.Totals{}, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, hash, err)
	}
	var t domain.Totals
	t.Allowed, _ = strconv.ParseInt(vals["allowed"], 10, 64)
	t.Denied, _ = strconv.ParseInt(vals["denied"], 10, 64)
	return t, nil
}
