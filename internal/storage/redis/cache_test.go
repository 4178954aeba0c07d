package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anondrop/backend/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewCacheWithClient(client), mr
}

func TestTokenCache(t *testing.T) {
	cache, mr := newTestCache(t)

	t.Run("缓存并读取令牌", func(t *testing.T) {
		token := &domain.DropToken{
			ID:       "abc12345",
			OwnerID:  7,
			IsActive: true,
		}
		require.NoError(t, cache.CacheToken(token, time.Minute))

		got, err := cache.GetCachedToken("abc12345")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.OwnerID)
		assert.True(t, got.IsActive)
	})

	t.Run("未命中返回ErrCacheMiss", func(t *testing.T) {
		_, err := cache.GetCachedToken("zzzzzzzz")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("失效后不可见", func(t *testing.T) {
		require.NoError(t, cache.DeleteCachedToken("abc12345"))
		_, err := cache.GetCachedToken("abc12345")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("TTL过期后不可见", func(t *testing.T) {
		token := &domain.DropToken{ID: "ttl00001", OwnerID: 7}
		require.NoError(t, cache.CacheToken(token, time.Second))

		mr.FastForward(2 * time.Second)

		_, err := cache.GetCachedToken("ttl00001")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestRateLimitCounters(t *testing.T) {
	cache, mr := newTestCache(t)

	count, err := cache.IncrementRateLimit("deposit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = cache.IncrementRateLimit("deposit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := cache.GetRateLimit("deposit:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	mr.FastForward(2 * time.Minute)

	got, err = cache.GetRateLimit("deposit:1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestStatisticsCache(t *testing.T) {
	cache, _ := newTestCache(t)

	stats := &domain.SystemStatistics{
		TotalOwners:   3,
		TotalTokens:   10,
		TotalDeposits: 42,
		GeneratedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.CacheStatistics(stats, time.Minute))

	got, err := cache.GetCachedStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.TotalDeposits)
}
