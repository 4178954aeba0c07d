package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/storage"
)

func newTestToken(id string, ownerID int64) *domain.DropToken {
	return &domain.DropToken{
		ID:        id,
		OwnerID:   ownerID,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

func TestTokenCRUD(t *testing.T) {
	store := NewStore()

	t.Run("保存并读取令牌", func(t *testing.T) {
		tok := newTestToken("abc12345", 1)
		require.NoError(t, store.SaveToken(tok))

		got, err := store.GetToken("abc12345")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.OwnerID)
		assert.True(t, got.IsActive)
	})

	t.Run("重复ID返回冲突错误", func(t *testing.T) {
		err := store.SaveToken(newTestToken("abc12345", 2))
		assert.ErrorIs(t, err, storage.ErrTokenExists)
	})

	t.Run("不存在的令牌", func(t *testing.T) {
		_, err := store.GetToken("zzzzzzzz")
		assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	})

	t.Run("返回的是副本", func(t *testing.T) {
		got, err := store.GetToken("abc12345")
		require.NoError(t, err)
		got.IsActive = false

		again, err := store.GetToken("abc12345")
		require.NoError(t, err)
		assert.True(t, again.IsActive)
	})
}

func TestListTokensByOwner(t *testing.T) {
	store := NewStore()
	base := time.Now()

	for i, id := range []string{"token001", "token002", "token003"} {
		tok := newTestToken(id, 7)
		tok.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveToken(tok))
	}
	require.NoError(t, store.SaveToken(newTestToken("other001", 8)))

	t.Run("按创建时间倒序", func(t *testing.T) {
		tokens, err := store.ListTokensByOwner(7, false)
		require.NoError(t, err)
		require.Len(t, tokens, 3)
		assert.Equal(t, "token003", tokens[0].ID)
		assert.Equal(t, "token001", tokens[2].ID)
	})

	t.Run("软删除后默认不可见", func(t *testing.T) {
		require.NoError(t, store.SoftDeleteToken("token002", 7, time.Now()))

		tokens, err := store.ListTokensByOwner(7, false)
		require.NoError(t, err)
		assert.Len(t, tokens, 2)

		withDeleted, err := store.ListTokensByOwner(7, true)
		require.NoError(t, err)
		assert.Len(t, withDeleted, 3)
	})
}

func TestSetTokenActive(t *testing.T) {
	store := NewStore()
	now := time.Now()

	require.NoError(t, store.SaveToken(newTestToken("tok00001", 1)))

	t.Run("属主不符", func(t *testing.T) {
		err := store.SetTokenActive("tok00001", 99, false, now)
		assert.ErrorIs(t, err, storage.ErrTokenForbidden)
	})

	t.Run("停用与重新启用", func(t *testing.T) {
		require.NoError(t, store.SetTokenActive("tok00001", 1, false, now))
		got, _ := store.GetToken("tok00001")
		assert.False(t, got.IsActive)

		require.NoError(t, store.SetTokenActive("tok00001", 1, true, now))
		got, _ = store.GetToken("tok00001")
		assert.True(t, got.IsActive)
	})

	t.Run("启用已过期令牌被拒绝", func(t *testing.T) {
		expired := newTestToken("tok00002", 1)
		past := now.Add(-time.Hour)
		expired.ExpiresAt = &past
		expired.IsActive = false
		require.NoError(t, store.SaveToken(expired))

		err := store.SetTokenActive("tok00002", 1, true, now)
		assert.ErrorIs(t, err, storage.ErrTokenExpired)
	})

	t.Run("停用已过期令牌是无害操作", func(t *testing.T) {
		err := store.SetTokenActive("tok00002", 1, false, now)
		assert.NoError(t, err)
	})
}

func TestDepositLifecycle(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveToken(newTestToken("tok00001", 1)))

	t.Run("写入并读取投递", func(t *testing.T) {
		dep := &domain.Deposit{
			TokenID:      "tok00001",
			SenderAnonID: "x1y2z3",
			Text:         "hello",
			CreatedAt:    time.Now(),
		}
		require.NoError(t, store.SaveDeposit(dep, false))
		assert.NotZero(t, dep.ID)

		got, err := store.GetDeposit(dep.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
	})

	t.Run("软删除令牌级联隐藏投递", func(t *testing.T) {
		require.NoError(t, store.SoftDeleteToken("tok00001", 1, time.Now()))

		deposits, err := store.ListDepositsByOwner(1)
		require.NoError(t, err)
		assert.Empty(t, deposits)
	})

	t.Run("彻底删除令牌清除投递行", func(t *testing.T) {
		require.NoError(t, store.DeleteToken("tok00001", 1))
		_, err := store.GetToken("tok00001")
		assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	})
}

func TestListDepositsByOwnerOrdering(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveToken(newTestToken("tok00001", 1)))
	require.NoError(t, store.SaveToken(newTestToken("tok00002", 1)))

	base := time.Now()
	for i := 0; i < 4; i++ {
		tokenID := "tok00001"
		if i%2 == 1 {
			tokenID = "tok00002"
		}
		dep := &domain.Deposit{
			TokenID:      tokenID,
			SenderAnonID: "aaaaaa",
			Text:         "msg",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.SaveDeposit(dep, false))
	}

	deposits, err := store.ListDepositsByOwner(1)
	require.NoError(t, err)
	require.Len(t, deposits, 4)
	for i := 1; i < len(deposits); i++ {
		assert.False(t, deposits[i].CreatedAt.After(deposits[i-1].CreatedAt))
	}
}

func TestSingleUseConsumeAtomicity(t *testing.T) {
	store := NewStore()
	tok := newTestToken("tok00001", 1)
	tok.IsSingleUse = true
	require.NoError(t, store.SaveToken(tok))

	t.Run("并发消费只有一个成功", func(t *testing.T) {
		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				dep := &domain.Deposit{
					TokenID:      "tok00001",
					SenderAnonID: "aaaaaa",
					Text:         "race",
					CreatedAt:    time.Now(),
				}
				errs[idx] = store.SaveDeposit(dep, true)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, storage.ErrTokenConsumed)
			}
		}
		assert.Equal(t, 1, succeeded)

		got, err := store.GetToken("tok00001")
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		count, err := store.CountDepositsByToken("tok00001")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestOwnerRepository(t *testing.T) {
	store := NewStore()

	t.Run("首次交互自动建档", func(t *testing.T) {
		owner, err := store.GetOrCreateOwner(42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), owner.ID)
		assert.False(t, owner.HasPin())
	})

	t.Run("再次获取返回同一属主", func(t *testing.T) {
		first, err := store.GetOrCreateOwner(42)
		require.NoError(t, err)
		again, err := store.GetOrCreateOwner(42)
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, again.CreatedAt)
	})

	t.Run("设置PIN哈希", func(t *testing.T) {
		require.NoError(t, store.SetOwnerPinHash(42, "$2a$10$hash"))
		owner, err := store.GetOwner(42)
		require.NoError(t, err)
		assert.True(t, owner.HasPin())
	})

	t.Run("未建档属主", func(t *testing.T) {
		_, err := store.GetOwner(404)
		assert.ErrorIs(t, err, storage.ErrOwnerNotFound)
	})
}

func TestDisableExpiredTokens(t *testing.T) {
	store := NewStore()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := newTestToken("tok00001", 1)
	expired.ExpiresAt = &past
	live := newTestToken("tok00002", 1)
	live.ExpiresAt = &future
	forever := newTestToken("tok00003", 1)

	require.NoError(t, store.SaveToken(expired))
	require.NoError(t, store.SaveToken(live))
	require.NoError(t, store.SaveToken(forever))

	count, err := store.DisableExpiredTokens(now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, _ := store.GetToken("tok00001")
	assert.False(t, got.IsActive)
	got, _ = store.GetToken("tok00002")
	assert.True(t, got.IsActive)
}

func TestRateLimit(t *testing.T) {
	store := NewStore()

	count, err := store.IncrementRateLimit("deposit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.IncrementRateLimit("deposit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := store.GetRateLimit("deposit:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	got, err = store.GetRateLimit("unknown")
	require.NoError(t, err)
	assert.Zero(t, got)
}
