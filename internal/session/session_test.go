package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), 10*time.Minute, 3)

	t.Run("开启并读取会话", func(t *testing.T) {
		sess, err := mgr.Begin(1, StateAwaitingPin)
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingPin, sess.State)
		assert.Zero(t, sess.Attempts)

		got, err := mgr.Get(1)
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingPin, got.State)
	})

	t.Run("新会话覆盖旧会话", func(t *testing.T) {
		_, err := mgr.Begin(1, StateSettingPin)
		require.NoError(t, err)

		got, err := mgr.Get(1)
		require.NoError(t, err)
		assert.Equal(t, StateSettingPin, got.State)
		assert.Zero(t, got.Attempts)
	})

	t.Run("状态流转保存", func(t *testing.T) {
		sess, err := mgr.Get(1)
		require.NoError(t, err)

		sess.State = StateConfirmingPin
		sess.PendingPin = "1234"
		require.NoError(t, mgr.Update(sess))

		got, err := mgr.Get(1)
		require.NoError(t, err)
		assert.Equal(t, StateConfirmingPin, got.State)
		assert.Equal(t, "1234", got.PendingPin)
	})

	t.Run("取消后不存在", func(t *testing.T) {
		require.NoError(t, mgr.Cancel(1))
		_, err := mgr.Get(1)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestPinFailureLockout(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), 10*time.Minute, 3)

	t.Run("三次失败后锁定", func(t *testing.T) {
		_, err := mgr.Begin(7, StateAwaitingPin)
		require.NoError(t, err)

		locked, remaining, err := mgr.RecordPinFailure(7)
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, 2, remaining)

		locked, remaining, err = mgr.RecordPinFailure(7)
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, 1, remaining)

		locked, _, err = mgr.RecordPinFailure(7)
		require.NoError(t, err)
		assert.True(t, locked)

		// 锁定即销毁会话
		_, err = mgr.Get(7)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("新会话失败计数清零", func(t *testing.T) {
		_, err := mgr.Begin(7, StateAwaitingPin)
		require.NoError(t, err)

		locked, remaining, err := mgr.RecordPinFailure(7)
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, 2, remaining)
	})
}

func TestVerifiedState(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), 10*time.Minute, 3)

	assert.False(t, mgr.IsVerified(5))

	require.NoError(t, mgr.MarkVerified(5))
	assert.True(t, mgr.IsVerified(5))

	require.NoError(t, mgr.Cancel(5))
	assert.False(t, mgr.IsVerified(5))
}

func TestSessionExpiry(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, 50*time.Millisecond, 3)

	_, err := mgr.Begin(9, StateAwaitingPin)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, err = mgr.Get(9)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreGC(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.SaveSession(&Session{
		OwnerID:   1,
		State:     StateAwaitingPin,
		ExpiresAt: now.Add(-time.Minute),
	}, 0))
	require.NoError(t, store.SaveSession(&Session{
		OwnerID:   2,
		State:     StateAwaitingPin,
		ExpiresAt: now.Add(time.Minute),
	}, 0))

	assert.Equal(t, 1, store.GC(now))

	_, err := store.GetSession(2)
	assert.NoError(t, err)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	mgr := NewManager(store, 10*time.Minute, 3)

	t.Run("会话往返", func(t *testing.T) {
		sess, err := mgr.Begin(11, StateConfirmingPin)
		require.NoError(t, err)
		sess.PendingPin = "654321"
		require.NoError(t, mgr.Update(sess))

		got, err := mgr.Get(11)
		require.NoError(t, err)
		assert.Equal(t, StateConfirmingPin, got.State)
		assert.Equal(t, "654321", got.PendingPin)
	})

	t.Run("Redis TTL到期后会话消失", func(t *testing.T) {
		_, err := mgr.Begin(12, StateAwaitingPin)
		require.NoError(t, err)

		mr.FastForward(11 * time.Minute)

		_, err = mgr.Get(12)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("锁定逻辑在Redis后端一致", func(t *testing.T) {
		_, err := mgr.Begin(13, StateAwaitingPin)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			locked, _, err := mgr.RecordPinFailure(13)
			require.NoError(t, err)
			assert.False(t, locked)
		}
		locked, _, err := mgr.RecordPinFailure(13)
		require.NoError(t, err)
		assert.True(t, locked)
	})
}
