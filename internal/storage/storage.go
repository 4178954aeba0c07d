package storage

import (
	"errors"
	"time"

	"anondrop/backend/internal/domain"
)

var (
	// ErrTokenNotFound 令牌未找到（或已删除）
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExists 令牌 ID 已存在（生成碰撞，可重试）
	ErrTokenExists = errors.New("token already exists")
	// ErrTokenForbidden 令牌属主不匹配
	ErrTokenForbidden = errors.New("token owned by another owner")
	// ErrTokenExpired 令牌已过期（写入时重新判定）
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenConsumed 一次性令牌已被并发投递消费
	ErrTokenConsumed = errors.New("single-use token already consumed")
	// ErrDepositNotFound 投递未找到
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrOwnerNotFound 属主未找到
	ErrOwnerNotFound = errors.New("owner not found")
)

// TokenRepository 定义投递令牌数据存取操作。
type TokenRepository interface {
	SaveToken(token *domain.DropToken) error
	GetToken(id string) (*domain.DropToken, error)
	ListTokensByOwner(ownerID int64, includeDeleted bool) ([]domain.DropToken, error)
	// SetTokenActive 条件更新激活位：属主不符返回 ErrTokenForbidden，
	// 启用已过期令牌返回 ErrTokenExpired。
	SetTokenActive(id string, ownerID int64, active bool, now time.Time) error
	// SoftDeleteToken 软删除令牌并级联软删除其投递。
	SoftDeleteToken(id string, ownerID int64, now time.Time) error
	// DeleteToken 彻底删除令牌，先删投递再删令牌，整体原子。
	DeleteToken(id string, ownerID int64) error
	// DisableExpiredTokens 将已过期但仍标记激活的令牌置为停用，返回数量。
	DisableExpiredTokens(now time.Time) (int, error)
}

// DepositRepository 定义投递数据存取操作。
type DepositRepository interface {
	// SaveDeposit 写入投递；consumeToken 为真时在同一原子单元内
	// 完成一次性令牌的条件消费，竞争失败返回 ErrTokenConsumed。
	SaveDeposit(deposit *domain.Deposit, consumeToken bool) error
	GetDeposit(id int64) (*domain.Deposit, error)
	// ListDepositsByOwner 返回属主全部未删除令牌下的未删除投递，最新在前。
	ListDepositsByOwner(ownerID int64) ([]domain.Deposit, error)
	CountDepositsByToken(tokenID string) (int, error)
	// DeleteDepositsByOwner 彻底删除属主全部投递，返回删除数量。
	DeleteDepositsByOwner(ownerID int64) (int, error)
}

// OwnerRepository 定义属主数据存取操作。
type OwnerRepository interface {
	// GetOrCreateOwner 首次交互自动建档。
	GetOrCreateOwner(id int64) (*domain.Owner, error)
	GetOwner(id int64) (*domain.Owner, error)
	SetOwnerPinHash(id int64, pinHash string) error
	TouchOwner(id int64, seenAt time.Time) error
}

// RateLimitRepository 定义限流计数操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// StatsRepository 定义统计查询操作。
type StatsRepository interface {
	GetSystemStatistics() (*domain.SystemStatistics, error)
}

// Store 定义完整的存储接口。
type Store interface {
	TokenRepository
	DepositRepository
	OwnerRepository
	StatsRepository

	// 工具方法
	Close() error
	Health() error
}
