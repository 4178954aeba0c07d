package domain

import (
	"time"
)

// OwnerStats 属主的令牌与投递统计（管理视图）。
type OwnerStats struct {
	TotalTokens    int `json:"totalTokens"`
	ActiveTokens   int `json:"activeTokens"`
	DisabledTokens int `json:"disabledTokens"`
	ExpiredTokens  int `json:"expiredTokens"`
	TotalDeposits  int `json:"totalDeposits"`
}

// SystemStatistics 系统级统计（运维视图）。
type SystemStatistics struct {
	TotalOwners   int64     `json:"totalOwners"`
	TotalTokens   int64     `json:"totalTokens"`
	ActiveTokens  int64     `json:"activeTokens"`
	TotalDeposits int64     `json:"totalDeposits"`
	GeneratedAt   time.Time `json:"generatedAt"`
}
