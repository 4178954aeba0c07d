package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"anondrop/backend/internal/config"
	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/storage"
)

// tokenAlphabet 令牌与匿名 ID 的字符表：小写字母与数字
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// maxGenerateAttempts ID 碰撞时的最大重试次数
const maxGenerateAttempts = 5

// TokenService 封装投递令牌的业务操作。
type TokenService struct {
	repo storage.TokenRepository
	cfg  *config.Config
}

// NewTokenService 创建令牌业务服务。
func NewTokenService(repo storage.TokenRepository, cfg *config.Config) *TokenService {
	return &TokenService{
		repo: repo,
		cfg:  cfg,
	}
}

// CreateTokenInput 定义创建令牌所需的输入。
type CreateTokenInput struct {
	OwnerID   int64
	SingleUse bool
	// TTL 为 nil 表示永不过期；UseDefaultTTL 为真时采用配置的默认时长
	TTL           *time.Duration
	UseDefaultTTL bool
}

// Create 创建新令牌。
//
// ID 由 crypto/rand 生成，与存储已有 ID 碰撞时换一个重试；
// 连续碰撞视为存储异常，向上返回错误。
func (s *TokenService) Create(input CreateTokenInput) (*domain.DropToken, error) {
	now := time.Now()

	ttl := input.TTL
	if ttl == nil && input.UseDefaultTTL {
		d := s.cfg.Drop.DefaultTTL
		ttl = &d
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id, err := generateID(domain.TokenIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token id: %w", err)
		}

		token := &domain.DropToken{
			ID:          id,
			OwnerID:     input.OwnerID,
			IsActive:    true,
			IsSingleUse: input.SingleUse,
			CreatedAt:   now,
		}
		if ttl != nil {
			expiresAt := now.Add(*ttl)
			token.ExpiresAt = &expiresAt
		}

		err = s.repo.SaveToken(token)
		if errors.Is(err, storage.ErrTokenExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		return token, nil
	}

	return nil, fmt.Errorf("failed to allocate unique token id after %d attempts", maxGenerateAttempts)
}

// Get 按 ID 获取令牌。
func (s *TokenService) Get(id string) (*domain.DropToken, error) {
	if err := domain.ValidateTokenID(id); err != nil {
		return nil, err
	}

	token, err := s.repo.GetToken(id)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// List 返回属主的令牌，最新创建的在前。
func (s *TokenService) List(ownerID int64, includeDeleted bool) ([]domain.DropToken, error) {
	return s.repo.ListTokensByOwner(ownerID, includeDeleted)
}

// SetActive 停用或重新启用令牌。
//
// 启用已过期的令牌被拒绝（过期在写入时刻重新判定）；
// 停用已过期的令牌是无害操作。
func (s *TokenService) SetActive(id string, ownerID int64, active bool) error {
	if err := domain.ValidateTokenID(id); err != nil {
		return err
	}
	return mapTokenError(s.repo.SetTokenActive(id, ownerID, active, time.Now()))
}

// SoftDelete 软删除令牌，级联软删除其投递。
func (s *TokenService) SoftDelete(id string, ownerID int64) error {
	if err := domain.ValidateTokenID(id); err != nil {
		return err
	}
	return mapTokenError(s.repo.SoftDeleteToken(id, ownerID, time.Now()))
}

// PermanentDelete 彻底删除令牌及其全部投递。
func (s *TokenService) PermanentDelete(id string, ownerID int64) error {
	if err := domain.ValidateTokenID(id); err != nil {
		return err
	}
	return mapTokenError(s.repo.DeleteToken(id, ownerID))
}

// mapTokenError 把存储层错误翻译为业务层错误
func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrTokenNotFound):
		return ErrTokenNotFound
	case errors.Is(err, storage.ErrTokenForbidden):
		return ErrForbidden
	case errors.Is(err, storage.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("token operation failed: %w", err)
	}
}

// generateID 从 crypto/rand 生成定长随机 ID。
func generateID(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = tokenAlphabet[int(buf[i])%len(tokenAlphabet)]
	}
	return string(buf), nil
}
