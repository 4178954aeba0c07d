package domain

import (
	"time"
)

// TokenState 投递令牌的生命周期状态。
type TokenState string

const (
	// TokenStateActive 可接收投递
	TokenStateActive TokenState = "active"
	// TokenStateDisabled 属主手动停用
	TokenStateDisabled TokenState = "disabled"
	// TokenStateExpired 已过期（惰性判定，不落库）
	TokenStateExpired TokenState = "expired"
	// TokenStateDeleted 已软删除
	TokenStateDeleted TokenState = "deleted"
)

// TokenIDLength 令牌 ID 长度（小写字母与数字）
const TokenIDLength = 8

// SenderAnonIDLength 投递方匿名 ID 长度
const SenderAnonIDLength = 6

// DropToken 表示匿名投递令牌的业务实体。
//
// 过期是读取时计算的状态：ExpiresAt 到期后令牌立即不可用，
// 无需任何后台任务改写存储。
type DropToken struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(8)"`
	OwnerID     int64      `json:"ownerId" gorm:"index;not null"`
	IsActive    bool       `json:"isActive"`
	IsSingleUse bool       `json:"isSingleUse"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" gorm:"index"`

	// DepositCount 列表与统计视图填充，不落库
	DepositCount int `json:"depositCount" gorm:"-"`
}

// IsDeleted 是否已软删除
func (t *DropToken) IsDeleted() bool {
	return t.DeletedAt != nil
}

// IsExpired 在 now 时刻是否已过期
func (t *DropToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// State 返回 now 时刻的令牌状态。
//
// 判定顺序：删除 > 过期 > 停用 > 激活。
func (t *DropToken) State(now time.Time) TokenState {
	switch {
	case t.IsDeleted():
		return TokenStateDeleted
	case t.IsExpired(now):
		return TokenStateExpired
	case !t.IsActive:
		return TokenStateDisabled
	default:
		return TokenStateActive
	}
}

// IsUsable 在 now 时刻能否接收投递
func (t *DropToken) IsUsable(now time.Time) bool {
	return t.State(now) == TokenStateActive
}
