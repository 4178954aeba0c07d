package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"anondrop/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache Redis 缓存实现。
//
// 承担投递热路径上的令牌读缓存、限流计数与统计缓存；
// 不是事实来源，令牌状态的写操作永远直达主存储。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// NewCacheWithClient 使用现有客户端创建缓存实例（测试用）
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		ctx:    context.Background(),
	}
}

// Client 返回底层的 Redis 客户端
func (c *Cache) Client() *redis.Client {
	return c.client
}

// ========== 令牌缓存 ==========

// CacheToken 缓存令牌信息
func (c *Cache) CacheToken(token *domain.DropToken, ttl time.Duration) error {
	key := fmt.Sprintf("token:%s", token.ID)
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedToken 获取缓存的令牌信息
func (c *Cache) GetCachedToken(tokenID string) (*domain.DropToken, error) {
	key := fmt.Sprintf("token:%s", tokenID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var token domain.DropToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteCachedToken 删除缓存的令牌信息（状态变更后失效）
func (c *Cache) DeleteCachedToken(tokenID string) error {
	key := fmt.Sprintf("token:%s", tokenID)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 限流缓存 ==========

// IncrementRateLimit 增加限流计数
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()

	incr := pipe.Incr(c.ctx, key)
	pipe.Expire(c.ctx, key, window)

	if _, err := pipe.Exec(c.ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetRateLimit 获取限流计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	count, err := c.client.Get(c.ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ========== 统计缓存 ==========

// CacheStatistics 缓存系统统计信息
func (c *Cache) CacheStatistics(stats *domain.SystemStatistics, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, "system:statistics", data, ttl).Err()
}

// GetCachedStatistics 获取缓存的系统统计信息
func (c *Cache) GetCachedStatistics() (*domain.SystemStatistics, error) {
	data, err := c.client.Get(c.ctx, "system:statistics").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var stats domain.SystemStatistics
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ========== 工具方法 ==========

// Ping 测试 Redis 连接
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Delete 删除键
func (c *Cache) Delete(key string) error {
	return c.client.Del(c.ctx, key).Err()
}

// Exists 检查键是否存在
func (c *Cache) Exists(key string) (bool, error) {
	count, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
