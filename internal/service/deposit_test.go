package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/storage/memory"
)

func newTestDepositService() (*DepositService, *TokenService, *memory.Store) {
	store := memory.NewStore()
	validator := security.NewFileValidator(nil, 0)
	return NewDepositService(store, store, validator), NewTokenService(store, testConfig()), store
}

func TestDeposit(t *testing.T) {
	depositSvc, tokenSvc, _ := newTestDepositService()
	token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	t.Run("纯文本投递", func(t *testing.T) {
		dep, err := depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "  hello there  "})
		require.NoError(t, err)
		assert.Equal(t, "hello there", dep.Text)
		assert.Equal(t, token.ID, dep.TokenID)
		assert.Len(t, dep.SenderAnonID, domain.SenderAnonIDLength)
		assert.False(t, dep.HasFile())
	})

	t.Run("带文件投递", func(t *testing.T) {
		dep, err := depositSvc.Deposit(DepositInput{
			TokenID: token.ID,
			Text:    "see attached",
			File:    &domain.FileRef{ID: "blob-1", Name: "photo.png", Size: 1024, MimeType: "image/png"},
		})
		require.NoError(t, err)
		assert.True(t, dep.HasFile())
		assert.Equal(t, domain.FileCategoryImage, dep.FileCategory)
	})

	t.Run("空内容被拒绝", func(t *testing.T) {
		_, err := depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "   "})
		assert.ErrorIs(t, err, domain.ErrEmptyContent)
	})

	t.Run("令牌格式非法被拒绝", func(t *testing.T) {
		_, err := depositSvc.Deposit(DepositInput{TokenID: "short", Text: "hi"})
		assert.ErrorIs(t, err, domain.ErrInvalidTokenID)
	})

	t.Run("令牌不存在", func(t *testing.T) {
		_, err := depositSvc.Deposit(DepositInput{TokenID: "zzzzzzzz", Text: "hi"})
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestDepositTokenState(t *testing.T) {
	depositSvc, tokenSvc, store := newTestDepositService()

	t.Run("停用令牌拒收", func(t *testing.T) {
		token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
		require.NoError(t, tokenSvc.SetActive(token.ID, 1, false))

		_, err = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "hi"})
		assert.ErrorIs(t, err, ErrTokenInactive)
	})

	t.Run("过期令牌拒收", func(t *testing.T) {
		ttl := time.Millisecond
		token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1, TTL: &ttl})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		_, err = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "hi"})
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("软删除令牌对投递方等同不存在", func(t *testing.T) {
		token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
		require.NoError(t, store.SoftDeleteToken(token.ID, 1, time.Now()))

		_, err = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "hi"})
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestDepositFilePolicy(t *testing.T) {
	depositSvc, tokenSvc, _ := newTestDepositService()
	token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	t.Run("危险扩展名被拒绝", func(t *testing.T) {
		_, err := depositSvc.Deposit(DepositInput{
			TokenID: token.ID,
			File:    &domain.FileRef{ID: "b", Name: "setup.exe", Size: 10, MimeType: "application/octet-stream"},
		})
		assert.ErrorIs(t, err, security.ErrUnsafeFileType)
	})

	t.Run("超大文件被拒绝", func(t *testing.T) {
		_, err := depositSvc.Deposit(DepositInput{
			TokenID: token.ID,
			File:    &domain.FileRef{ID: "b", Name: "video.mp4", Size: security.DefaultMaxFileSize + 1, MimeType: "video/mp4"},
		})
		assert.ErrorIs(t, err, security.ErrFileTooLarge)
	})
}

func TestSenderAnonIDFreshness(t *testing.T) {
	depositSvc, tokenSvc, _ := newTestDepositService()
	token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	// 同一令牌的多次投递不可通过匿名 ID 关联
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		dep, err := depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "hi"})
		require.NoError(t, err)
		assert.False(t, seen[dep.SenderAnonID], "sender id reused: %s", dep.SenderAnonID)
		seen[dep.SenderAnonID] = true
	}
}

func TestSingleUseToken(t *testing.T) {
	depositSvc, tokenSvc, _ := newTestDepositService()

	t.Run("首次投递后令牌自动停用", func(t *testing.T) {
		token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1, SingleUse: true})
		require.NoError(t, err)

		_, err = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "first"})
		require.NoError(t, err)

		got, err := tokenSvc.Get(token.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		_, err = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "second"})
		assert.ErrorIs(t, err, ErrTokenInactive)
	})

	t.Run("并发投递恰有一个成功", func(t *testing.T) {
		token, err := tokenSvc.Create(CreateTokenInput{OwnerID: 1, SingleUse: true})
		require.NoError(t, err)

		const racers = 16
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = depositSvc.Deposit(DepositInput{TokenID: token.ID, Text: "race"})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				// 竞争失败方拿到消费冲突或停用错误，取决于读到的令牌快照
				assert.True(t, err == ErrTokenConsumed || err == ErrTokenInactive, "unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}
