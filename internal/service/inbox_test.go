package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/notify"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/storage/filesystem"
	"anondrop/backend/internal/storage/memory"
)

type inboxFixture struct {
	store    *memory.Store
	blobs    *filesystem.Store
	recorder *notify.Recorder
	inbox    *InboxService
	tokens   *TokenService
	deposits *DepositService
}

func newInboxFixture(t *testing.T, location *time.Location) *inboxFixture {
	t.Helper()

	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)

	recorder := notify.NewRecorder()
	return &inboxFixture{
		store:    store,
		blobs:    blobs,
		recorder: recorder,
		inbox:    NewInboxService(store, store, blobs, recorder, location),
		tokens:   NewTokenService(store, testConfig()),
		deposits: NewDepositService(store, store, security.NewFileValidator(nil, 0)),
	}
}

func TestGetInbox(t *testing.T) {
	fx := newInboxFixture(t, time.UTC)

	t.Run("空收件箱返回空切片", func(t *testing.T) {
		deposits, err := fx.inbox.GetInbox(1)
		require.NoError(t, err)
		assert.NotNil(t, deposits)
		assert.Empty(t, deposits)
	})

	t.Run("跨多个令牌合并且最新在前", func(t *testing.T) {
		tokenA, err := fx.tokens.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
		tokenB, err := fx.tokens.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)

		base := time.Now().Add(-time.Hour)
		for i, tokenID := range []string{tokenA.ID, tokenB.ID, tokenA.ID} {
			dep := &domain.Deposit{
				TokenID:      tokenID,
				SenderAnonID: "abc123",
				Text:         "msg",
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, fx.store.SaveDeposit(dep, false))
		}

		deposits, err := fx.inbox.GetInbox(1)
		require.NoError(t, err)
		require.Len(t, deposits, 3)
		for i := 1; i < len(deposits); i++ {
			assert.False(t, deposits[i-1].CreatedAt.Before(deposits[i].CreatedAt))
		}
	})

	t.Run("不包含他人令牌的投递", func(t *testing.T) {
		other, err := fx.tokens.Create(CreateTokenInput{OwnerID: 2})
		require.NoError(t, err)
		_, err = fx.deposits.Deposit(DepositInput{TokenID: other.ID, Text: "private"})
		require.NoError(t, err)

		deposits, err := fx.inbox.GetInbox(1)
		require.NoError(t, err)
		for _, dep := range deposits {
			assert.NotEqual(t, other.ID, dep.TokenID)
		}
	})
}

func TestGroupByDay(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, shanghai)
	mk := func(ts time.Time) domain.Deposit {
		return domain.Deposit{TokenID: "aaaaaaaa", CreatedAt: ts}
	}

	t.Run("今天与昨天的标签", func(t *testing.T) {
		deposits := []domain.Deposit{
			mk(now.Add(-time.Hour)),
			mk(now.Add(-2 * time.Hour)),
			mk(now.AddDate(0, 0, -1)),
			mk(now.AddDate(0, 0, -5)),
		}

		groups := GroupByDay(deposits, shanghai, now)
		require.Len(t, groups, 3)
		assert.Equal(t, "Today", groups[0].Label)
		assert.Len(t, groups[0].Deposits, 2)
		assert.Equal(t, "Yesterday", groups[1].Label)
		assert.Equal(t, "Mar 5, 2026", groups[2].Label)
	})

	t.Run("分桶边界取分组时区的本地日", func(t *testing.T) {
		// UTC 2026-03-09 17:30 在上海已是 3 月 10 日凌晨
		lateUTC := time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC)
		groups := GroupByDay([]domain.Deposit{mk(lateUTC)}, shanghai, now)
		require.Len(t, groups, 1)
		assert.Equal(t, "Today", groups[0].Label)

		groups = GroupByDay([]domain.Deposit{mk(lateUTC)}, time.UTC, now)
		require.Len(t, groups, 1)
		assert.Equal(t, "Yesterday", groups[0].Label)
	})

	t.Run("空输入返回空分组", func(t *testing.T) {
		groups := GroupByDay(nil, shanghai, now)
		assert.NotNil(t, groups)
		assert.Empty(t, groups)
	})
}

func TestClearInbox(t *testing.T) {
	fx := newInboxFixture(t, time.UTC)
	token, err := fx.tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := fx.deposits.Deposit(DepositInput{TokenID: token.ID, Text: "msg"})
		require.NoError(t, err)
	}

	count, err := fx.inbox.ClearInbox(1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	deposits, err := fx.inbox.GetInbox(1)
	require.NoError(t, err)
	assert.Empty(t, deposits)

	// 清空已空的收件箱是幂等操作
	count, err = fx.inbox.ClearInbox(1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestViewDeposit(t *testing.T) {
	fx := newInboxFixture(t, time.UTC)
	token, err := fx.tokens.Create(CreateTokenInput{OwnerID: 1})
	require.NoError(t, err)

	t.Run("查看文本投递触发送达", func(t *testing.T) {
		dep, err := fx.deposits.Deposit(DepositInput{TokenID: token.ID, Text: "hello"})
		require.NoError(t, err)

		got, payload, err := fx.inbox.ViewDeposit(1, dep.ID)
		require.NoError(t, err)
		assert.Equal(t, dep.ID, got.ID)
		assert.Nil(t, payload)

		deliveries := fx.recorder.Deliveries()
		require.Len(t, deliveries, 1)
		assert.Equal(t, int64(1), deliveries[0].OwnerID)
		assert.Nil(t, deliveries[0].Payload)
	})

	t.Run("查看文件投递附带载荷", func(t *testing.T) {
		content := []byte("file payload bytes")
		ref, err := fx.blobs.SaveBlob("note.txt", "text/plain", content)
		require.NoError(t, err)

		dep, err := fx.deposits.Deposit(DepositInput{TokenID: token.ID, File: ref})
		require.NoError(t, err)

		_, payload, err := fx.inbox.ViewDeposit(1, dep.ID)
		require.NoError(t, err)
		assert.Equal(t, content, payload)

		deliveries := fx.recorder.Deliveries()
		last := deliveries[len(deliveries)-1]
		assert.Equal(t, content, last.Payload)
	})

	t.Run("非属主被拒绝", func(t *testing.T) {
		dep, err := fx.deposits.Deposit(DepositInput{TokenID: token.ID, Text: "secret"})
		require.NoError(t, err)

		_, _, err = fx.inbox.ViewDeposit(99, dep.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("投递不存在", func(t *testing.T) {
		_, _, err := fx.inbox.ViewDeposit(1, 999999)
		assert.ErrorIs(t, err, ErrDepositNotFound)
	})

	t.Run("令牌已软删除时投递不可见", func(t *testing.T) {
		victim, err := fx.tokens.Create(CreateTokenInput{OwnerID: 1})
		require.NoError(t, err)
		dep, err := fx.deposits.Deposit(DepositInput{TokenID: victim.ID, Text: "gone"})
		require.NoError(t, err)

		require.NoError(t, fx.tokens.SoftDelete(victim.ID, 1))

		_, _, err = fx.inbox.ViewDeposit(1, dep.ID)
		assert.ErrorIs(t, err, ErrDepositNotFound)
	})
}
