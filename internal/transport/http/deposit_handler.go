package httptransport

import (
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/service"
	"anondrop/backend/internal/storage/filesystem"
)

// DepositHandler 处理匿名投递请求。
//
// 这是系统唯一不做认证的写入口：投递方只需持有令牌。
// 响应里不回显任何属主信息。
type DepositHandler struct {
	deposits  *service.DepositService
	tokens    *service.TokenService
	blobs     *filesystem.Store
	validator *security.FileValidator
	log       *zap.Logger
}

// NewDepositHandler 创建投递处理器
func NewDepositHandler(deposits *service.DepositService, tokens *service.TokenService, blobs *filesystem.Store, validator *security.FileValidator, log *zap.Logger) *DepositHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DepositHandler{
		deposits:  deposits,
		tokens:    tokens,
		blobs:     blobs,
		validator: validator,
		log:       log,
	}
}

type depositTextRequest struct {
	Text string `json:"text"`
}

type depositResponse struct {
	DepositID    int64     `json:"depositId"`
	SenderAnonID string    `json:"senderAnonId"`
	CreatedAt    time.Time `json:"createdAt"`
	HasFile      bool      `json:"hasFile"`
	FileCategory string    `json:"fileCategory,omitempty"`
}

// Probe 查询令牌当前是否可投递
func (h *DepositHandler) Probe(c *gin.Context) {
	token, err := h.tokens.Get(c.Param("token"))
	if err != nil {
		switch err {
		case service.ErrTokenNotFound:
			NotFound(c, MsgTokenNotFound)
		case domain.ErrInvalidTokenID:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("token probe failed", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	now := time.Now()
	if token.IsDeleted() {
		// 已删除的令牌对投递方等同不存在
		NotFound(c, MsgTokenNotFound)
		return
	}

	Success(c, gin.H{
		"usable":      token.IsUsable(now),
		"state":       string(token.State(now)),
		"isSingleUse": token.IsSingleUse,
	})
}

// Deposit 执行一次匿名投递。
//
// multipart/form-data 携带 text 字段与可选的 file 文件；
// application/json 只投递纯文本。
func (h *DepositHandler) Deposit(c *gin.Context) {
	tokenID := c.Param("token")

	input := service.DepositInput{TokenID: tokenID}

	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		input.Text = c.PostForm("text")

		fileHeader, err := c.FormFile("file")
		if err == nil && fileHeader != nil {
			ref, ok := h.storeUploadedFile(c, fileHeader)
			if !ok {
				return
			}
			input.File = ref
			defer func() {
				// 投递未落库时回收已写入的文件
				if input.File != nil {
					_ = h.blobs.DeleteBlob(input.File.ID)
				}
			}()
		}
	} else {
		var req depositTextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		input.Text = req.Text
	}

	deposit, err := h.deposits.Deposit(input)
	if err != nil {
		h.respondDepositError(c, err)
		return
	}
	input.File = nil // 投递成功，文件归收件箱所有

	Created(c, depositResponse{
		DepositID:    deposit.ID,
		SenderAnonID: deposit.SenderAnonID,
		CreatedAt:    deposit.CreatedAt,
		HasFile:      deposit.HasFile(),
		FileCategory: string(deposit.FileCategory),
	})
}

// storeUploadedFile 校验并落盘上传的文件，失败时已写出错误响应
func (h *DepositHandler) storeUploadedFile(c *gin.Context, fileHeader *multipart.FileHeader) (*domain.FileRef, bool) {
	filename := fileHeader.Filename
	if err := h.validator.Check(filename, fileHeader.Size); err != nil {
		BadRequest(c, GetErrorMessage(err))
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, MsgFileUploadFailed)
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.validator.MaxFileSize()+1))
	if err != nil {
		BadRequest(c, MsgFileUploadFailed)
		return nil, false
	}

	// 按真实载荷再查一遍：大小与可执行文件魔数
	if err := h.validator.CheckContent(filename, content); err != nil {
		BadRequest(c, GetErrorMessage(err))
		return nil, false
	}

	ref, err := h.blobs.SaveBlob(filename, fileHeader.Header.Get("Content-Type"), content)
	if err != nil {
		h.log.Error("failed to store uploaded file", zap.Error(err))
		InternalError(c, MsgFileStoreFailed)
		return nil, false
	}
	return ref, true
}

// respondDepositError 把投递业务错误映射为 HTTP 响应
func (h *DepositHandler) respondDepositError(c *gin.Context, err error) {
	switch err {
	case service.ErrTokenNotFound:
		NotFound(c, MsgTokenNotFound)
	case service.ErrTokenInactive:
		Forbidden(c, GetErrorMessage(err))
	case service.ErrTokenExpired:
		Gone(c, GetErrorMessage(err))
	case service.ErrTokenConsumed:
		Conflict(c, GetErrorMessage(err))
	case domain.ErrInvalidTokenID, domain.ErrEmptyContent, domain.ErrTextTooLong,
		security.ErrUnsafeFileType, security.ErrFileTooLarge:
		BadRequest(c, GetErrorMessage(err))
	default:
		h.log.Error("deposit failed", zap.Error(err))
		InternalError(c, MsgDepositFailed)
	}
}
