package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidTokenID   = errors.New("invalid token id format")
	ErrInvalidPinFormat = errors.New("invalid pin format")
	ErrEmptyContent     = errors.New("deposit must contain text or a file")
	ErrTextTooLong      = errors.New("deposit text too long")
)

const (
	// MinPinLength PIN 最短位数
	MinPinLength = 4
	// MaxPinLength PIN 最长位数
	MaxPinLength = 6
	// MaxDepositTextLength 投递文本最大长度
	MaxDepositTextLength = 4096
)

// 正则表达式
var (
	// 令牌 ID：固定 8 位小写字母或数字
	tokenIDRegex = regexp.MustCompile(`^[a-z0-9]{8}$`)

	// PIN：4-6 位 ASCII 数字
	pinRegex = regexp.MustCompile(`^[0-9]{4,6}$`)

	// 匿名发送方 ID：固定 6 位小写字母或数字
	senderAnonIDRegex = regexp.MustCompile(`^[a-z0-9]{6}$`)
)

// ValidateTokenID 验证令牌 ID 格式。
//
// 格式不合法直接返回 ErrInvalidTokenID，调用方不需要再查存储。
func ValidateTokenID(id string) error {
	if !tokenIDRegex.MatchString(id) {
		return ErrInvalidTokenID
	}
	return nil
}

// IsValidTokenID 令牌 ID 格式布尔判定
func IsValidTokenID(id string) bool {
	return tokenIDRegex.MatchString(id)
}

// ValidatePin 验证 PIN 格式（4-6 位数字）。
func ValidatePin(pin string) error {
	if !pinRegex.MatchString(pin) {
		return ErrInvalidPinFormat
	}
	return nil
}

// IsValidPin PIN 格式布尔判定
func IsValidPin(pin string) bool {
	return pinRegex.MatchString(pin)
}

// IsValidSenderAnonID 匿名发送方 ID 格式布尔判定
func IsValidSenderAnonID(id string) bool {
	return senderAnonIDRegex.MatchString(id)
}

// ValidateDepositText 验证投递文本。
func ValidateDepositText(text string) error {
	if len(text) > MaxDepositTextLength {
		return ErrTextTooLong
	}
	return nil
}

// ValidateDepositContent 验证投递内容：文本与文件至少其一。
func ValidateDepositContent(text string, file *FileRef) error {
	if strings.TrimSpace(text) == "" && file == nil {
		return ErrEmptyContent
	}
	return ValidateDepositText(text)
}
