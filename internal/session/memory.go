package session

import (
	"sync"
	"time"
)

// MemoryStore 进程内会话存储，单实例部署的默认后端。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
	}
}

// SaveSession 保存会话
func (s *MemoryStore) SaveSession(sess *Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.OwnerID] = &cp
	return nil
}

// GetSession 读取会话
func (s *MemoryStore) GetSession(ownerID int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[ownerID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// DeleteSession 删除会话
func (s *MemoryStore) DeleteSession(ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, ownerID)
	return nil
}

// GC 清除已过期会话，返回清除数量。
func (s *MemoryStore) GC(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for ownerID, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, ownerID)
			count++
		}
	}
	return count
}
