package infra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelligent-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_RecordsTotalsRoutesAndKeys(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: true, Method: "GET", Path: "/api/hello"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: false, Method: "GET", Path: "/api/hello"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "u2", Allowed: true, Method: "POST", Path: "/api/hello"})

	total, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Allowed: 2, Denied: 1}, total)

	routes := s.ByRoute()
	assert.Equal(t, domain.Totals{Allowed: 1, Denied: 1}, routes["GET /api/hello"])
	assert.Equal(t, domain.Totals{Allowed: 1}, routes["POST /api/hello"])

	keys := s.ByKey()
	assert.Equal(t, domain.Totals{Allowed: 1, Denied: 1}, keys["u1"])
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "u1", Allowed: true})
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_Integration(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("it_stats_%d", time.Now().UnixNano())
	s := NewRedisStatsStore(client, WithStatsPrefix(prefix), WithStatsTTL(time.Minute), WithStatsTrackKeys(true))
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: true, Method: "GET", Path: "/hello"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: false, Method: "GET", Path: "/hello"}))

	total, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Allowed: 1, Denied: 1}, total)

	route, err := client.HGet(ctx, prefix+":route", "GET /hello:denied").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), route)

	ttl, err := client.TTL(ctx, prefix+":key:u1").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0)

	perKey, err := s.KeyTotals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Allowed: 1, Denied: 1}, perKey)
}

func TestRedisStatsStore_UnavailableWrapsSentinel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer func() { _ = client.Close() }()
	s := NewRedisStatsStore(client)

	err := s.Record(context.Background(), domain.StatsEvent{Key: "u1", Allowed: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Totals(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
