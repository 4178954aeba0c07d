package memory

import (
	"sort"
	"sync"
	"time"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/storage"
)

// Store 使用内存保存令牌与投递数据，主要用于开发验证和测试。
//
// 所有写操作在同一把锁内完成，一次性令牌的条件消费天然原子。
type Store struct {
	mu       sync.RWMutex
	owners   map[int64]*domain.Owner
	tokens   map[string]*domain.DropToken
	deposits map[int64]*domain.Deposit

	nextDepositID int64

	// 速率限制相关
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		owners:            make(map[int64]*domain.Owner),
		tokens:            make(map[string]*domain.DropToken),
		deposits:          make(map[int64]*domain.Deposit),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}
}

// SaveToken 保存新令牌，ID 冲突返回 storage.ErrTokenExists。
func (s *Store) SaveToken(token *domain.DropToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.ID]; ok {
		return storage.ErrTokenExists
	}
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

// GetToken 根据 ID 获取令牌，含已软删除的记录。
func (s *Store) GetToken(id string) (*domain.DropToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

// ListTokensByOwner 返回属主的令牌，按创建时间倒序。
func (s *Store) ListTokensByOwner(ownerID int64, includeDeleted bool) ([]domain.DropToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DropToken, 0)
	for _, token := range s.tokens {
		if token.OwnerID != ownerID {
			continue
		}
		if token.IsDeleted() && !includeDeleted {
			continue
		}
		cp := *token
		cp.DepositCount = s.countDepositsLocked(token.ID)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SetTokenActive 条件更新令牌激活位。
func (s *Store) SetTokenActive(id string, ownerID int64, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok || token.IsDeleted() {
		return storage.ErrTokenNotFound
	}
	if token.OwnerID != ownerID {
		return storage.ErrTokenForbidden
	}
	// 启用前重新判定过期，避免读到写之间的窗口
	if active && token.IsExpired(now) {
		return storage.ErrTokenExpired
	}
	token.IsActive = active
	return nil
}

// SoftDeleteToken 软删除令牌并级联软删除其投递。
func (s *Store) SoftDeleteToken(id string, ownerID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok || token.IsDeleted() {
		return storage.ErrTokenNotFound
	}
	if token.OwnerID != ownerID {
		return storage.ErrTokenForbidden
	}

	deletedAt := now
	token.DeletedAt = &deletedAt
	for _, dep := range s.deposits {
		if dep.TokenID == id && dep.DeletedAt == nil {
			dep.DeletedAt = &deletedAt
		}
	}
	return nil
}

// DeleteToken 彻底删除令牌及其全部投递。
func (s *Store) DeleteToken(id string, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return storage.ErrTokenNotFound
	}
	if token.OwnerID != ownerID {
		return storage.ErrTokenForbidden
	}

	for depID, dep := range s.deposits {
		if dep.TokenID == id {
			delete(s.deposits, depID)
		}
	}
	delete(s.tokens, id)
	return nil
}

// DisableExpiredTokens 将已过期但仍标记激活的令牌置为停用。
func (s *Store) DisableExpiredTokens(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, token := range s.tokens {
		if token.IsActive && !token.IsDeleted() && token.IsExpired(now) {
			token.IsActive = false
			count++
		}
	}
	return count, nil
}

// SaveDeposit 写入投递，consumeToken 为真时同步消费一次性令牌。
func (s *Store) SaveDeposit(deposit *domain.Deposit, consumeToken bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[deposit.TokenID]
	if !ok || token.IsDeleted() {
		return storage.ErrTokenNotFound
	}
	if consumeToken {
		if !token.IsActive {
			return storage.ErrTokenConsumed
		}
		token.IsActive = false
	}

	s.nextDepositID++
	deposit.ID = s.nextDepositID
	cp := *deposit
	s.deposits[cp.ID] = &cp
	return nil
}

// GetDeposit 根据 ID 获取投递。
func (s *Store) GetDeposit(id int64) (*domain.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dep, ok := s.deposits[id]
	if !ok || dep.DeletedAt != nil {
		return nil, storage.ErrDepositNotFound
	}
	cp := *dep
	return &cp, nil
}

// ListDepositsByOwner 返回属主全部未删除令牌下的未删除投递，最新在前。
func (s *Store) ListDepositsByOwner(ownerID int64) ([]domain.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Deposit, 0)
	for _, dep := range s.deposits {
		if dep.DeletedAt != nil {
			continue
		}
		token, ok := s.tokens[dep.TokenID]
		if !ok || token.OwnerID != ownerID || token.IsDeleted() {
			continue
		}
		result = append(result, *dep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CountDepositsByToken 统计令牌下未删除投递数量。
func (s *Store) CountDepositsByToken(tokenID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countDepositsLocked(tokenID), nil
}

func (s *Store) countDepositsLocked(tokenID string) int {
	count := 0
	for _, dep := range s.deposits {
		if dep.TokenID == tokenID && dep.DeletedAt == nil {
			count++
		}
	}
	return count
}

// DeleteDepositsByOwner 彻底删除属主全部投递，返回删除数量。
func (s *Store) DeleteDepositsByOwner(ownerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for depID, dep := range s.deposits {
		token, ok := s.tokens[dep.TokenID]
		if !ok || token.OwnerID != ownerID {
			continue
		}
		delete(s.deposits, depID)
		count++
	}
	return count, nil
}

// GetOrCreateOwner 首次交互自动建档。
func (s *Store) GetOrCreateOwner(id int64) (*domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[id]; ok {
		cp := *owner
		return &cp, nil
	}
	now := time.Now()
	owner := &domain.Owner{ID: id, CreatedAt: now, LastSeenAt: now}
	s.owners[id] = owner
	cp := *owner
	return &cp, nil
}

// GetOwner 根据 ID 获取属主。
func (s *Store) GetOwner(id int64) (*domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[id]
	if !ok {
		return nil, storage.ErrOwnerNotFound
	}
	cp := *owner
	return &cp, nil
}

// SetOwnerPinHash 更新属主 PIN 哈希。
func (s *Store) SetOwnerPinHash(id int64, pinHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[id]
	if !ok {
		return storage.ErrOwnerNotFound
	}
	owner.PinHash = pinHash
	return nil
}

// TouchOwner 更新属主最近活跃时间。
func (s *Store) TouchOwner(id int64, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[id]
	if !ok {
		return storage.ErrOwnerNotFound
	}
	owner.LastSeenAt = seenAt
	return nil
}

// GetSystemStatistics 汇总系统级统计。
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := &domain.SystemStatistics{
		TotalOwners: int64(len(s.owners)),
		GeneratedAt: now,
	}
	for _, token := range s.tokens {
		if !token.IsDeleted() {
			stats.TotalTokens++
			if token.IsUsable(now) {
				stats.ActiveTokens++
			}
		}
	}
	for _, dep := range s.deposits {
		if dep.DeletedAt == nil {
			stats.TotalDeposits++
		}
	}
	return stats, nil
}

// IncrementRateLimit 递增限流计数，窗口过期后重新计数。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.rateLimitsCleanup) {
		for k, entry := range s.rateLimits {
			if now.After(entry.ExpiresAt) {
				delete(s.rateLimits, k)
			}
		}
		s.rateLimitsCleanup = now.Add(5 * time.Minute)
	}

	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 读取限流计数。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// Close 关闭存储。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	return nil
}
