package service

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/pool"
	"anondrop/backend/internal/storage"
)

// LifecycleService 批量令牌操作与过期治理。
//
// 批量操作逐牌独立：单个令牌失败不影响其余令牌，
// 只上报成功数量。执行走协程池限制并发。
type LifecycleService struct {
	tokens  storage.TokenRepository
	workers *pool.WorkerPool
	logger  *zap.Logger
}

// NewLifecycleService 创建生命周期业务服务。
func NewLifecycleService(tokens storage.TokenRepository, workers *pool.WorkerPool, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{
		tokens:  tokens,
		workers: workers,
		logger:  logger,
	}
}

// DisableAll 停用属主全部未删除令牌，返回成功停用的数量。
func (s *LifecycleService) DisableAll(ownerID int64) (int, error) {
	return s.bulk(ownerID, func(token domain.DropToken) error {
		if !token.IsActive {
			return errSkipped
		}
		return s.tokens.SetTokenActive(token.ID, ownerID, false, time.Now())
	})
}

// EnableAll 重新启用属主全部可启用的令牌，返回成功启用的数量。
//
// 已过期的令牌被存储层拒绝启用，计入跳过而非失败。
func (s *LifecycleService) EnableAll(ownerID int64) (int, error) {
	now := time.Now()
	return s.bulk(ownerID, func(token domain.DropToken) error {
		if token.IsActive || token.IsExpired(now) {
			return errSkipped
		}
		return s.tokens.SetTokenActive(token.ID, ownerID, true, time.Now())
	})
}

// DeleteAll 删除属主全部令牌，permanent 为真时彻底删除。
func (s *LifecycleService) DeleteAll(ownerID int64, permanent bool) (int, error) {
	return s.bulk(ownerID, func(token domain.DropToken) error {
		if permanent {
			return s.tokens.DeleteToken(token.ID, ownerID)
		}
		return s.tokens.SoftDeleteToken(token.ID, ownerID, time.Now())
	})
}

// errSkipped 标记该令牌无需操作（不计入成功数）
var errSkipped = skipError{}

type skipError struct{}

func (skipError) Error() string { return "skipped" }

// bulk 对属主全部未删除令牌并发执行 op，返回成功数量。
func (s *LifecycleService) bulk(ownerID int64, op func(domain.DropToken) error) (int, error) {
	tokens, err := s.tokens.ListTokensByOwner(ownerID, false)
	if err != nil {
		return 0, err
	}

	var succeeded atomic.Int64
	var wg sync.WaitGroup

	for _, token := range tokens {
		token := token
		wg.Add(1)
		s.workers.Submit(func() {
			defer wg.Done()
			switch err := op(token); err {
			case nil:
				succeeded.Add(1)
			case errSkipped:
			default:
				s.logger.Warn("bulk token operation failed",
					zap.String("token_id", token.ID),
					zap.Int64("owner_id", ownerID),
					zap.Error(err),
				)
			}
		})
	}
	wg.Wait()

	return int(succeeded.Load()), nil
}

// Stats 汇总属主的令牌与投递统计。
func (s *LifecycleService) Stats(ownerID int64) (*domain.OwnerStats, error) {
	tokens, err := s.tokens.ListTokensByOwner(ownerID, false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stats := &domain.OwnerStats{TotalTokens: len(tokens)}
	for _, token := range tokens {
		switch token.State(now) {
		case domain.TokenStateActive:
			stats.ActiveTokens++
		case domain.TokenStateDisabled:
			stats.DisabledTokens++
		case domain.TokenStateExpired:
			stats.ExpiredTokens++
		}
		stats.TotalDeposits += token.DepositCount
	}
	return stats, nil
}

// SweepExpired 把已过期但仍标记激活的令牌置为停用。
//
// 纯治理动作：过期令牌在读取路径上本来就不可用，
// 这里只是让存储里的标记追上事实，返回处理数量。
func (s *LifecycleService) SweepExpired() (int, error) {
	count, err := s.tokens.DisableExpiredTokens(time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired tokens swept", zap.Int("count", count))
	}
	return count, nil
}
