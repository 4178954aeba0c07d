package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/storage"
)

// DepositService 封装匿名投递管线。
//
// 检查顺序固定：格式 → 令牌存在性 → 过期 → 停用 → 文件策略 → 写入。
// 投递方永远拿不到属主身份，属主永远拿不到投递方身份。
type DepositService struct {
	tokens    storage.TokenRepository
	deposits  storage.DepositRepository
	validator *security.FileValidator
}

// NewDepositService 创建投递业务服务。
func NewDepositService(tokens storage.TokenRepository, deposits storage.DepositRepository, validator *security.FileValidator) *DepositService {
	return &DepositService{
		tokens:    tokens,
		deposits:  deposits,
		validator: validator,
	}
}

// DepositInput 定义一次投递的输入。
type DepositInput struct {
	TokenID string
	Text    string          // 纯文本正文，或带文件时的说明
	File    *domain.FileRef // 已写入 blob 存储的文件引用
}

// Deposit 执行一次匿名投递。
//
// 一次性令牌的消费与投递写入在存储层同一原子单元内完成，
// 并发竞争失败返回 ErrTokenConsumed。
func (s *DepositService) Deposit(input DepositInput) (*domain.Deposit, error) {
	if err := domain.ValidateTokenID(input.TokenID); err != nil {
		return nil, err
	}
	if err := domain.ValidateDepositContent(input.Text, input.File); err != nil {
		return nil, err
	}

	token, err := s.tokens.GetToken(input.TokenID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	now := time.Now()
	switch token.State(now) {
	case domain.TokenStateDeleted:
		// 已删除的令牌对投递方与不存在等价
		return nil, ErrTokenNotFound
	case domain.TokenStateExpired:
		return nil, ErrTokenExpired
	case domain.TokenStateDisabled:
		return nil, ErrTokenInactive
	}

	if input.File != nil {
		if err := s.validator.Check(input.File.Name, input.File.Size); err != nil {
			return nil, err
		}
	}

	// 每次投递生成全新的匿名 ID，同一投递方两次投递不可关联
	senderAnonID, err := generateID(domain.SenderAnonIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sender id: %w", err)
	}

	deposit := &domain.Deposit{
		TokenID:      token.ID,
		SenderAnonID: senderAnonID,
		Text:         strings.TrimSpace(input.Text),
		CreatedAt:    now,
	}
	if input.File != nil {
		deposit.FileID = input.File.ID
		deposit.FileName = input.File.Name
		deposit.FileSize = input.File.Size
		deposit.MimeType = input.File.MimeType
		deposit.FileCategory = domain.CategorizeFile(input.File.MimeType, input.File.Name)
	}

	if err := s.deposits.SaveDeposit(deposit, token.IsSingleUse); err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenConsumed):
			return nil, ErrTokenConsumed
		case errors.Is(err, storage.ErrTokenNotFound):
			return nil, ErrTokenNotFound
		default:
			return nil, fmt.Errorf("failed to save deposit: %w", err)
		}
	}

	return deposit, nil
}
