package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/storage"
)

// Store 基于 GORM 的关系型存储实现，支持 PostgreSQL 与 MySQL。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Owner{},
		&domain.DropToken{},
		&domain.Deposit{},
	)
}

// ========== Token Repository ==========

// SaveToken 保存新令牌，主键冲突映射为 storage.ErrTokenExists。
func (s *Store) SaveToken(token *domain.DropToken) error {
	err := s.db.Create(token).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrTokenExists
	}
	return err
}

// GetToken 根据 ID 获取令牌，含已软删除的记录
func (s *Store) GetToken(id string) (*domain.DropToken, error) {
	var token domain.DropToken
	err := s.db.Where("id = ?", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// ListTokensByOwner 返回属主的令牌，按创建时间倒序，并填充投递数量
func (s *Store) ListTokensByOwner(ownerID int64, includeDeleted bool) ([]domain.DropToken, error) {
	query := s.db.Where("owner_id = ?", ownerID)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	var tokens []domain.DropToken
	if err := query.Order("created_at DESC, id DESC").Find(&tokens).Error; err != nil {
		return nil, err
	}

	counts, err := s.depositCountsByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].DepositCount = counts[tokens[i].ID]
	}
	return tokens, nil
}

type tokenDepositCount struct {
	TokenID string
	Count   int
}

func (s *Store) depositCountsByOwner(ownerID int64) (map[string]int, error) {
	var rows []tokenDepositCount
	err := s.db.Model(&domain.Deposit{}).
		Select("deposits.token_id AS token_id, COUNT(*) AS count").
		Joins("JOIN drop_tokens ON drop_tokens.id = deposits.token_id").
		Where("drop_tokens.owner_id = ? AND deposits.deleted_at IS NULL", ownerID).
		Group("deposits.token_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.TokenID] = row.Count
	}
	return counts, nil
}

// SetTokenActive 条件更新令牌激活位，启用前在事务内重新判定过期
func (s *Store) SetTokenActive(id string, ownerID int64, active bool, now time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var token domain.DropToken
		err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrTokenNotFound
			}
			return err
		}
		if token.OwnerID != ownerID {
			return storage.ErrTokenForbidden
		}
		if active && token.IsExpired(now) {
			return storage.ErrTokenExpired
		}
		return tx.Model(&domain.DropToken{}).
			Where("id = ?", id).
			Update("is_active", active).Error
	})
}

// SoftDeleteToken 软删除令牌并在同一事务内级联软删除其投递
func (s *Store) SoftDeleteToken(id string, ownerID int64, now time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var token domain.DropToken
		err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrTokenNotFound
			}
			return err
		}
		if token.OwnerID != ownerID {
			return storage.ErrTokenForbidden
		}

		if err := tx.Model(&domain.Deposit{}).
			Where("token_id = ? AND deleted_at IS NULL", id).
			Update("deleted_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&domain.DropToken{}).
			Where("id = ?", id).
			Update("deleted_at", now).Error
	})
}

// DeleteToken 彻底删除令牌，先删投递再删令牌
func (s *Store) DeleteToken(id string, ownerID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var token domain.DropToken
		err := tx.Where("id = ?", id).First(&token).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrTokenNotFound
			}
			return err
		}
		if token.OwnerID != ownerID {
			return storage.ErrTokenForbidden
		}

		if err := tx.Where("token_id = ?", id).Delete(&domain.Deposit{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.DropToken{}).Error
	})
}

// DisableExpiredTokens 将已过期但仍标记激活的令牌置为停用，返回数量
func (s *Store) DisableExpiredTokens(now time.Time) (int, error) {
	result := s.db.Model(&domain.DropToken{}).
		Where("is_active = ? AND deleted_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("is_active", false)
	return int(result.RowsAffected), result.Error
}

// ========== Deposit Repository ==========

// SaveDeposit 写入投递。
//
// consumeToken 为真时先对一次性令牌做条件更新（is_active 由真置假），
// 更新行数为零说明并发投递已抢先消费，整个事务回滚并返回
// storage.ErrTokenConsumed。
func (s *Store) SaveDeposit(deposit *domain.Deposit, consumeToken bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if consumeToken {
			result := tx.Model(&domain.DropToken{}).
				Where("id = ? AND is_active = ? AND deleted_at IS NULL", deposit.TokenID, true).
				Update("is_active", false)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return storage.ErrTokenConsumed
			}
		}
		return tx.Create(deposit).Error
	})
}

// GetDeposit 根据 ID 获取投递
func (s *Store) GetDeposit(id int64) (*domain.Deposit, error) {
	var deposit domain.Deposit
	err := s.db.Where("id = ? AND deleted_at IS NULL", id).First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrDepositNotFound
		}
		return nil, err
	}
	return &deposit, nil
}

// ListDepositsByOwner 返回属主全部未删除令牌下的未删除投递，最新在前
func (s *Store) ListDepositsByOwner(ownerID int64) ([]domain.Deposit, error) {
	var deposits []domain.Deposit
	err := s.db.
		Joins("JOIN drop_tokens ON drop_tokens.id = deposits.token_id").
		Where("drop_tokens.owner_id = ? AND drop_tokens.deleted_at IS NULL AND deposits.deleted_at IS NULL", ownerID).
		Order("deposits.created_at DESC, deposits.id DESC").
		Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

// CountDepositsByToken 统计令牌下未删除投递数量
func (s *Store) CountDepositsByToken(tokenID string) (int, error) {
	var count int64
	err := s.db.Model(&domain.Deposit{}).
		Where("token_id = ? AND deleted_at IS NULL", tokenID).
		Count(&count).Error
	return int(count), err
}

// DeleteDepositsByOwner 彻底删除属主全部投递，返回删除数量
func (s *Store) DeleteDepositsByOwner(ownerID int64) (int, error) {
	result := s.db.
		Where("token_id IN (?)", s.db.Model(&domain.DropToken{}).Select("id").Where("owner_id = ?", ownerID)).
		Delete(&domain.Deposit{})
	return int(result.RowsAffected), result.Error
}

// ========== Owner Repository ==========

// GetOrCreateOwner 首次交互自动建档
func (s *Store) GetOrCreateOwner(id int64) (*domain.Owner, error) {
	now := time.Now().UTC()
	owner := domain.Owner{ID: id}
	err := s.db.
		Attrs(domain.Owner{CreatedAt: now, LastSeenAt: now}).
		FirstOrCreate(&owner, domain.Owner{ID: id}).Error
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

// GetOwner 根据 ID 获取属主
func (s *Store) GetOwner(id int64) (*domain.Owner, error) {
	var owner domain.Owner
	err := s.db.Where("id = ?", id).First(&owner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

// SetOwnerPinHash 更新属主 PIN 哈希
func (s *Store) SetOwnerPinHash(id int64, pinHash string) error {
	result := s.db.Model(&domain.Owner{}).
		Where("id = ?", id).
		Update("pin_hash", pinHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrOwnerNotFound
	}
	return nil
}

// TouchOwner 更新属主最近活跃时间
func (s *Store) TouchOwner(id int64, seenAt time.Time) error {
	result := s.db.Model(&domain.Owner{}).
		Where("id = ?", id).
		Update("last_seen_at", seenAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrOwnerNotFound
	}
	return nil
}

// ========== Stats Repository ==========

// GetSystemStatistics 汇总系统级统计
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	stats := &domain.SystemStatistics{GeneratedAt: time.Now().UTC()}

	if err := s.db.Model(&domain.Owner{}).Count(&stats.TotalOwners).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.DropToken{}).
		Where("deleted_at IS NULL").
		Count(&stats.TotalTokens).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.DropToken{}).
		Where("deleted_at IS NULL AND is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, stats.GeneratedAt).
		Count(&stats.ActiveTokens).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.Deposit{}).
		Where("deleted_at IS NULL").
		Count(&stats.TotalDeposits).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 数据库健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
