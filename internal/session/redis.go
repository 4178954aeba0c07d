package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 会话存储，多实例部署时共享会话。
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ctx:    context.Background(),
	}
}

func sessionKey(ownerID int64) string {
	return fmt.Sprintf("session:%d", ownerID)
}

// SaveSession 保存会话，TTL 由 Redis 负责
func (s *RedisStore) SaveSession(sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, sessionKey(sess.OwnerID), data, ttl).Err()
}

// GetSession 读取会话
func (s *RedisStore) GetSession(ownerID int64) (*Session, error) {
	data, err := s.client.Get(s.ctx, sessionKey(ownerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession 删除会话
func (s *RedisStore) DeleteSession(ownerID int64) error {
	return s.client.Del(s.ctx, sessionKey(ownerID)).Err()
}
