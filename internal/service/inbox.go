package service

import (
	"errors"
	"fmt"
	"time"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/notify"
	"anondrop/backend/internal/storage"
)

// BlobStore 读取投递文件载荷的存储接口。
type BlobStore interface {
	GetBlob(id string) ([]byte, error)
}

// InboxService 组装属主的收件箱视图。
type InboxService struct {
	tokens   storage.TokenRepository
	deposits storage.DepositRepository
	blobs    BlobStore
	notifier notify.Notifier
	location *time.Location
}

// NewInboxService 创建收件箱业务服务。
func NewInboxService(tokens storage.TokenRepository, deposits storage.DepositRepository, blobs BlobStore, notifier notify.Notifier, location *time.Location) *InboxService {
	if location == nil {
		location = time.UTC
	}
	return &InboxService{
		tokens:   tokens,
		deposits: deposits,
		blobs:    blobs,
		notifier: notifier,
		location: location,
	}
}

// GetInbox 返回属主全部未删除令牌下的投递，最新在前。
//
// 没有令牌或没有投递都返回空切片，不是错误。
func (s *InboxService) GetInbox(ownerID int64) ([]domain.Deposit, error) {
	return s.deposits.ListDepositsByOwner(ownerID)
}

// DayGroup 收件箱按日分组的一个桶。
type DayGroup struct {
	Date     time.Time        `json:"date"`  // 当日零点（分组时区）
	Label    string           `json:"label"` // Today / Yesterday / 具体日期
	Deposits []domain.Deposit `json:"deposits"`
}

// GetInboxGrouped 返回按日历日分组的收件箱，日期新的在前。
func (s *InboxService) GetInboxGrouped(ownerID int64) ([]DayGroup, error) {
	deposits, err := s.GetInbox(ownerID)
	if err != nil {
		return nil, err
	}
	return GroupByDay(deposits, s.location, time.Now()), nil
}

// GroupByDay 把按时间倒序的投递切成日历日分桶。
//
// 分桶边界取 location 时区的本地日；桶间按日期倒序，
// 桶内保持输入的倒序（最新在前）。
func GroupByDay(deposits []domain.Deposit, location *time.Location, now time.Time) []DayGroup {
	if location == nil {
		location = time.UTC
	}

	groups := make([]DayGroup, 0)
	var current *DayGroup

	for _, dep := range deposits {
		day := startOfDay(dep.CreatedAt.In(location))
		if current == nil || !current.Date.Equal(day) {
			groups = append(groups, DayGroup{
				Date:  day,
				Label: dayLabel(day, now.In(location)),
			})
			current = &groups[len(groups)-1]
		}
		current.Deposits = append(current.Deposits, dep)
	}

	return groups
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayLabel(day, now time.Time) string {
	today := startOfDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Jan 2, 2006")
	}
}

// ClearInbox 彻底删除属主全部投递，幂等。
func (s *InboxService) ClearInbox(ownerID int64) (int, error) {
	count, err := s.deposits.DeleteDepositsByOwner(ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear inbox: %w", err)
	}
	return count, nil
}

// ViewDeposit 属主查看一条投递：校验归属后把内容（含文件载荷）
// 交给送达器，并把载荷一并返回。纯拉取模型，入库不推送。
func (s *InboxService) ViewDeposit(ownerID int64, depositID int64) (*domain.Deposit, []byte, error) {
	deposit, err := s.deposits.GetDeposit(depositID)
	if err != nil {
		if errors.Is(err, storage.ErrDepositNotFound) {
			return nil, nil, ErrDepositNotFound
		}
		return nil, nil, fmt.Errorf("failed to load deposit: %w", err)
	}

	token, err := s.tokens.GetToken(deposit.TokenID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, nil, ErrDepositNotFound
		}
		return nil, nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token.OwnerID != ownerID {
		return nil, nil, ErrForbidden
	}
	if token.IsDeleted() {
		return nil, nil, ErrDepositNotFound
	}

	var payload []byte
	if deposit.HasFile() {
		payload, err = s.blobs.GetBlob(deposit.FileID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	if err := s.notifier.Deliver(ownerID, deposit, payload); err != nil {
		return nil, nil, fmt.Errorf("failed to deliver deposit: %w", err)
	}
	return deposit, payload, nil
}
