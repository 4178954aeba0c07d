package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"anondrop/backend/internal/cache"
	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/storage"
)

var (
	// ErrPinNotSet 属主尚未设置 PIN
	ErrPinNotSet = errors.New("pin not set")
)

// hasPinCacheTTL HasPin 结果的本地缓存时长
const hasPinCacheTTL = 5 * time.Minute

// HashPin 对 PIN 做 bcrypt 哈希。
//
// 格式不合法（非 4-6 位数字）返回 domain.ErrInvalidPinFormat。
func HashPin(pin string) (string, error) {
	if err := domain.ValidatePin(pin); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// CheckPin 比对 PIN 与哈希。
//
// 哈希损坏或格式不符一律返回 false，不向调用方暴露错误。
func CheckPin(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// PinService 收件箱 PIN 凭证服务。
//
// HasPin 查询走本地缓存（设置 PIN 时失效），校验路径永远直达存储。
type PinService struct {
	owners storage.OwnerRepository
	cache  *cache.LocalCache
}

// NewPinService 创建 PIN 凭证服务
func NewPinService(owners storage.OwnerRepository, localCache *cache.LocalCache) *PinService {
	return &PinService{
		owners: owners,
		cache:  localCache,
	}
}

// SetPin 设置或更换属主的收件箱 PIN。
func (s *PinService) SetPin(ownerID int64, pin string) error {
	hash, err := HashPin(pin)
	if err != nil {
		return err
	}
	if _, err := s.owners.GetOrCreateOwner(ownerID); err != nil {
		return err
	}
	if err := s.owners.SetOwnerPinHash(ownerID, hash); err != nil {
		return err
	}
	s.cache.Delete(hasPinCacheKey(ownerID))
	return nil
}

// HasPin 属主是否已设置 PIN。
func (s *PinService) HasPin(ownerID int64) (bool, error) {
	key := hasPinCacheKey(ownerID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(bool), nil
	}

	owner, err := s.owners.GetOwner(ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrOwnerNotFound) {
			return false, nil
		}
		return false, err
	}

	has := owner.HasPin()
	s.cache.Set(key, has, hasPinCacheTTL)
	return has, nil
}

// Verify 校验属主提交的 PIN。
//
// 属主不存在或未设置 PIN 返回 ErrPinNotSet；PIN 不匹配返回 false。
func (s *PinService) Verify(ownerID int64, pin string) (bool, error) {
	owner, err := s.owners.GetOwner(ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrOwnerNotFound) {
			return false, ErrPinNotSet
		}
		return false, err
	}
	if !owner.HasPin() {
		return false, ErrPinNotSet
	}
	return CheckPin(pin, owner.PinHash), nil
}

func hasPinCacheKey(ownerID int64) string {
	return fmt.Sprintf("haspin:%d", ownerID)
}
