package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
)

// State 会话状态（PIN 校验与投递向导的步骤）。
type State string

const (
	// StateAwaitingPin 等待属主输入 PIN 解锁收件箱
	StateAwaitingPin State = "awaiting_pin"
	// StateSettingPin 等待属主输入新 PIN
	StateSettingPin State = "setting_pin"
	// StateConfirmingPin 等待属主重复输入新 PIN 确认
	StateConfirmingPin State = "confirming_pin"
	// StateAwaitingFile 等待投递方上传文件
	StateAwaitingFile State = "awaiting_file"
	// StateVerified PIN 校验通过，收件箱已解锁
	StateVerified State = "verified"
)

// Session 单个属主的短会话记录。
//
// 会话不持久化到主存储，进程重启或 TTL 到期即消失；
// PIN 失败计数只在会话内累计，新会话从零开始。
type Session struct {
	OwnerID    int64     `json:"ownerId"`
	State      State     `json:"state"`
	PendingPin string    `json:"pendingPin,omitempty"` // ConfirmingPin 阶段暂存的首次输入
	TokenID    string    `json:"tokenId,omitempty"`    // AwaitingFile 阶段关联的令牌
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired 会话是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store 会话存储后端。
type Store interface {
	SaveSession(sess *Session, ttl time.Duration) error
	GetSession(ownerID int64) (*Session, error)
	DeleteSession(ownerID int64) error
}

// Manager 会话管理器。
type Manager struct {
	store       Store
	ttl         time.Duration
	maxAttempts int
}

// NewManager 创建会话管理器
func NewManager(store Store, ttl time.Duration, maxAttempts int) *Manager {
	return &Manager{
		store:       store,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Begin 开启新会话，覆盖同属主的旧会话。
func (m *Manager) Begin(ownerID int64, state State) (*Session, error) {
	now := time.Now()
	sess := &Session{
		OwnerID:   ownerID,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.SaveSession(sess, m.ttl); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get 读取会话，过期的会话被清除并视为不存在。
func (m *Manager) Get(ownerID int64) (*Session, error) {
	sess, err := m.store.GetSession(ownerID)
	if err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		_ = m.store.DeleteSession(ownerID)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Update 保存会话修改，保留原有过期时刻。
func (m *Manager) Update(sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		_ = m.store.DeleteSession(sess.OwnerID)
		return ErrSessionNotFound
	}
	return m.store.SaveSession(sess, ttl)
}

// RecordPinFailure 记录一次 PIN 失败。
//
// 达到阈值时会话被销毁并返回 locked=true，属主必须重新发起会话；
// remaining 是锁定前剩余的尝试次数。
func (m *Manager) RecordPinFailure(ownerID int64) (locked bool, remaining int, err error) {
	sess, err := m.Get(ownerID)
	if err != nil {
		return false, 0, err
	}

	sess.Attempts++
	if sess.Attempts >= m.maxAttempts {
		_ = m.store.DeleteSession(ownerID)
		return true, 0, nil
	}

	if err := m.Update(sess); err != nil {
		return false, 0, err
	}
	return false, m.maxAttempts - sess.Attempts, nil
}

// MarkVerified 标记属主已通过 PIN 校验，解锁态随会话 TTL 失效。
func (m *Manager) MarkVerified(ownerID int64) error {
	_, err := m.Begin(ownerID, StateVerified)
	return err
}

// IsVerified 属主当前会话是否处于已解锁态。
func (m *Manager) IsVerified(ownerID int64) bool {
	sess, err := m.Get(ownerID)
	if err != nil {
		return false
	}
	return sess.State == StateVerified
}

// Cancel 取消并清除会话。
func (m *Manager) Cancel(ownerID int64) error {
	return m.store.DeleteSession(ownerID)
}
