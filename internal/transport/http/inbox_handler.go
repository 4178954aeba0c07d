package httptransport

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/middleware"
	"anondrop/backend/internal/service"
)

// InboxHandler 处理属主的收件箱请求
type InboxHandler struct {
	inbox *service.InboxService
	log   *zap.Logger
}

// NewInboxHandler 创建收件箱处理器
func NewInboxHandler(inbox *service.InboxService, log *zap.Logger) *InboxHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxHandler{
		inbox: inbox,
		log:   log,
	}
}

type depositItemResponse struct {
	ID           int64     `json:"id"`
	TokenID      string    `json:"tokenId"`
	SenderAnonID string    `json:"senderAnonId"`
	Text         string    `json:"text,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	HasFile      bool      `json:"hasFile"`
	FileName     string    `json:"fileName,omitempty"`
	FileSize     string    `json:"fileSize,omitempty"`
	FileCategory string    `json:"fileCategory,omitempty"`
}

type inboxResponse struct {
	Items []depositItemResponse `json:"items"`
	Count int                   `json:"count"`
}

func toDepositItem(dep *domain.Deposit) depositItemResponse {
	item := depositItemResponse{
		ID:           dep.ID,
		TokenID:      dep.TokenID,
		SenderAnonID: dep.SenderAnonID,
		Text:         dep.Text,
		CreatedAt:    dep.CreatedAt,
		HasFile:      dep.HasFile(),
	}
	if dep.HasFile() {
		item.FileName = dep.FileName
		item.FileSize = domain.FormatFileSize(dep.FileSize)
		item.FileCategory = string(dep.FileCategory)
	}
	return item
}

// List 返回收件箱全部投递，最新在前
func (h *InboxHandler) List(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	deposits, err := h.inbox.GetInbox(ownerID)
	if err != nil {
		h.log.Error("failed to list inbox", zap.Error(err))
		InternalError(c, MsgInboxListFailed)
		return
	}

	items := make([]depositItemResponse, 0, len(deposits))
	for i := range deposits {
		items = append(items, toDepositItem(&deposits[i]))
	}

	Success(c, inboxResponse{
		Items: items,
		Count: len(items),
	})
}

type dayGroupResponse struct {
	Date     string                `json:"date"`
	Label    string                `json:"label"`
	Deposits []depositItemResponse `json:"deposits"`
}

// Grouped 返回按日历日分组的收件箱
func (h *InboxHandler) Grouped(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	groups, err := h.inbox.GetInboxGrouped(ownerID)
	if err != nil {
		h.log.Error("failed to group inbox", zap.Error(err))
		InternalError(c, MsgInboxListFailed)
		return
	}

	out := make([]dayGroupResponse, 0, len(groups))
	for _, g := range groups {
		deposits := make([]depositItemResponse, 0, len(g.Deposits))
		for i := range g.Deposits {
			deposits = append(deposits, toDepositItem(&g.Deposits[i]))
		}
		out = append(out, dayGroupResponse{
			Date:     g.Date.Format("2006-01-02"),
			Label:    g.Label,
			Deposits: deposits,
		})
	}

	Success(c, gin.H{
		"groups": out,
		"count":  len(out),
	})
}

// Clear 彻底删除收件箱全部投递
func (h *InboxHandler) Clear(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	count, err := h.inbox.ClearInbox(ownerID)
	if err != nil {
		h.log.Error("failed to clear inbox", zap.Error(err))
		InternalError(c, MsgInboxClearFailed)
		return
	}

	Success(c, gin.H{"deleted": count})
}

// View 查看单条投递详情
func (h *InboxHandler) View(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	depositID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	deposit, _, err := h.inbox.ViewDeposit(ownerID, depositID)
	if err != nil {
		h.respondInboxError(c, err)
		return
	}

	Success(c, toDepositItem(deposit))
}

// Download 下载投递附带的文件载荷
func (h *InboxHandler) Download(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	depositID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	deposit, payload, err := h.inbox.ViewDeposit(ownerID, depositID)
	if err != nil {
		h.respondInboxError(c, err)
		return
	}
	if !deposit.HasFile() {
		NotFound(c, "该投递没有文件")
		return
	}

	// 文件下载不使用统一响应格式，直接返回二进制流
	c.Header("Content-Disposition", "attachment; filename=\""+deposit.FileName+"\"")
	c.Header("Content-Length", fmt.Sprintf("%d", len(payload)))
	c.Data(http.StatusOK, deposit.MimeType, payload)
}

// respondInboxError 把收件箱业务错误映射为 HTTP 响应
func (h *InboxHandler) respondInboxError(c *gin.Context, err error) {
	switch err {
	case service.ErrDepositNotFound:
		NotFound(c, MsgDepositNotFound)
	case service.ErrForbidden:
		Forbidden(c, GetErrorMessage(err))
	default:
		h.log.Error("inbox operation failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	}
}
