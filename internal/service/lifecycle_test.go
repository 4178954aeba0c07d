package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anondrop/backend/internal/pool"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/storage/memory"
)

func newTestLifecycleService(t *testing.T) (*LifecycleService, *TokenService, *memory.Store) {
	t.Helper()

	workers := pool.NewWorkerPool(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	workers.Start(ctx)
	t.Cleanup(cancel)

	store := memory.NewStore()
	return NewLifecycleService(store, workers, zap.NewNop()), NewTokenService(store, testConfig()), store
}

func TestDisableAll(t *testing.T) {
	svc, tokens, _ := newTestLifecycleService(t)

	for i := 0; i < 5; i++ {
		_, err := tokens.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
	}
	already, err := tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)
	require.NoError(t, tokens.SetActive(already.ID, 1, false))

	// 已停用的令牌不计入成功数
	count, err := svc.DisableAll(1)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	list, err := tokens.List(1, false)
	require.NoError(t, err)
	for _, token := range list {
		assert.False(t, token.IsActive)
	}
}

func TestEnableAll(t *testing.T) {
	svc, tokens, store := newTestLifecycleService(t)

	for i := 0; i < 3; i++ {
		token, err := tokens.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
		require.NoError(t, tokens.SetActive(token.ID, 1, false))
	}
	active, err := tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	ttl := -time.Hour
	expired, err := tokens.Create(CreateTokenInput{OwnerID: 1, TTL: &ttl})
	require.NoError(t, err)
	require.NoError(t, store.SetTokenActive(expired.ID, 1, false, time.Now()))

	// 已激活与已过期的令牌都跳过
	count, err := svc.EnableAll(1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := tokens.Get(active.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestDeleteAll(t *testing.T) {
	t.Run("软删除全部", func(t *testing.T) {
		svc, tokens, _ := newTestLifecycleService(t)
		for i := 0; i < 4; i++ {
			_, err := tokens.Create(CreateTokenInput{OwnerID: 1})
			require.NoError(t, err)
		}

		count, err := svc.DeleteAll(1, false)
		require.NoError(t, err)
		assert.Equal(t, 4, count)

		list, err := tokens.List(1, false)
		require.NoError(t, err)
		assert.Empty(t, list)

		withDeleted, err := tokens.List(1, true)
		require.NoError(t, err)
		assert.Len(t, withDeleted, 4)
	})

	t.Run("彻底删除全部", func(t *testing.T) {
		svc, tokens, _ := newTestLifecycleService(t)
		for i := 0; i < 4; i++ {
			_, err := tokens.Create(CreateTokenInput{OwnerID: 1})
			require.NoError(t, err)
		}

		count, err := svc.DeleteAll(1, true)
		require.NoError(t, err)
		assert.Equal(t, 4, count)

		withDeleted, err := tokens.List(1, true)
		require.NoError(t, err)
		assert.Empty(t, withDeleted)
	})
}

func TestOwnerStats(t *testing.T) {
	svc, tokens, store := newTestLifecycleService(t)
	deposits := NewDepositService(store, store, security.NewFileValidator(nil, 0))

	active, err := tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)
	disabled, err := tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)
	require.NoError(t, tokens.SetActive(disabled.ID, 1, false))

	ttl := -time.Hour
	_, err = tokens.Create(CreateTokenInput{OwnerID: 1, TTL: &ttl})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := deposits.Deposit(DepositInput{TokenID: active.ID, Text: "msg"})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTokens)
	assert.Equal(t, 1, stats.ActiveTokens)
	assert.Equal(t, 1, stats.DisabledTokens)
	assert.Equal(t, 1, stats.ExpiredTokens)
	assert.Equal(t, 2, stats.TotalDeposits)
}

func TestSweepExpired(t *testing.T) {
	svc, tokens, store := newTestLifecycleService(t)

	for i := 0; i < 3; i++ {
		ttl := -time.Hour
		_, err := tokens.Create(CreateTokenInput{OwnerID: 1, TTL: &ttl})
		require.NoError(t, err)
	}
	fresh, err := tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	count, err := svc.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := store.GetToken(fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	// 再次清扫无事可做
	count, err = svc.SweepExpired()
	require.NoError(t, err)
	assert.Zero(t, count)
}
