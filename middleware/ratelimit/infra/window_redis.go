package infra

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"intelligent-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

const DefaultWindowPrefix = "rate_limit:"

// RedisWindowStore mantém os contadores da janela fixa no Redis.
//
// GET/SET PX/INCR/PTTL rodam num script Lua, então a atualização é atômica por
// chave mesmo com várias instâncias do gateway. A expiração da chave no Redis
// é o reset da janela.
type RedisWindowStore struct {
	rdb    *redis.Client
	script *redis.Script
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewRedisWindowStore(rdb *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		script: redis.NewScript(fixedWindowScript),
		prefix: DefaultWindowPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Prefix() string { return s.prefix }

// Admit implementa domain.CounterStore. now só é usado para calcular ResetAt;
// o relógio da janela é o do servidor Redis (TTL da chave).
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, now time.Time, limit domain.Limit) (domain.Decision, error) {
	limit = limit.Normalize()

	vals, err := s.script.Run(ctx, s.rdb,
		[]string{s.prefix + string(key)},
		limit.Window.Milliseconds(),
		limit.Max,
	).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(vals) != 3 {
		return domain.Decision{}, fmt.Errorf("%w: unexpected script reply %v", domain.ErrStoreUnavailable, vals)
	}

	count, ttl, allowed := int(vals[0]), time.Duration(vals[1])*time.Millisecond, vals[2] == 1
	dec := domain.Decision{
		Allowed: allowed,
		Limit:   limit.Max,
		ResetAt: now.Add(ttl),
	}
	if allowed {
		dec.Remaining = limit.Max - count
		if dec.Remaining < 0 {
			dec.Remaining = 0
		}
		return dec, nil
	}
	dec.RetryAfter = domain.CeilSeconds(ttl)
	return dec, nil
}

// Inspect lista as janelas vivas (SCAN <prefix>*) com contagem e TTL.
func (s *RedisWindowStore) Inspect(ctx context.Context) ([]WindowState, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", s.prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	pipe := s.rdb.Pipeline()
	gets := make([]*redis.StringCmd, len(keys))
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, k := range keys {
		gets[i] = pipe.Get(ctx, k)
		ttls[i] = pipe.PTTL(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read windows: %w", err)
	}

	out := make([]WindowState, 0, len(keys))
	for i, k := range keys {
		raw, err := gets[i].Result()
		if err != nil {
			// expirou entre o SCAN e o GET
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		ttl := ttls[i].Val()
		if ttl < 0 {
			ttl = 0
		}
		out = append(out, WindowState{
			Key:   domain.Key(strings.TrimPrefix(k, s.prefix)),
			Count: count,
			TTL:   ttl,
		})
	}
	return out, nil
}
