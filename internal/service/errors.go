package service

import (
	"errors"
)

// 业务层错误。格式类错误直接复用 domain 包的定义
// （domain.ErrInvalidTokenID、domain.ErrInvalidPinFormat、domain.ErrEmptyContent），
// 文件策略错误复用 security 包的定义。
var (
	// ErrTokenNotFound 令牌不存在、已删除，或 ID 格式虽合法但查无此牌
	ErrTokenNotFound = errors.New("token not found")
	// ErrForbidden 操作者不是令牌属主
	ErrForbidden = errors.New("operation forbidden")
	// ErrTokenInactive 令牌已被属主停用
	ErrTokenInactive = errors.New("token inactive")
	// ErrTokenExpired 令牌已过期
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenConsumed 一次性令牌已被并发投递抢先消费
	ErrTokenConsumed = errors.New("token already consumed")
	// ErrDepositNotFound 投递不存在
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrStorageUnavailable 载荷存储暂不可用
	ErrStorageUnavailable = errors.New("storage unavailable")
)
