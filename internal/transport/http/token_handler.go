package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/middleware"
	"anondrop/backend/internal/service"
)

// TokenHandler 处理属主的投递令牌管理请求
type TokenHandler struct {
	tokens    *service.TokenService
	lifecycle *service.LifecycleService
	log       *zap.Logger
}

// NewTokenHandler 创建令牌处理器
func NewTokenHandler(tokens *service.TokenService, lifecycle *service.LifecycleService, log *zap.Logger) *TokenHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenHandler{
		tokens:    tokens,
		lifecycle: lifecycle,
		log:       log,
	}
}

type createTokenRequest struct {
	SingleUse bool   `json:"singleUse"`
	ExpiresIn string `json:"expiresIn"` // Go duration，空表示永不过期，"default" 使用配置默认
}

type tokenResponse struct {
	ID           string     `json:"id"`
	State        string     `json:"state"`
	IsSingleUse  bool       `json:"isSingleUse"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	DepositCount int        `json:"depositCount"`
}

type tokenListResponse struct {
	Items []tokenResponse `json:"items"`
	Count int             `json:"count"`
}

func toTokenResponse(token *domain.DropToken) tokenResponse {
	return tokenResponse{
		ID:           token.ID,
		State:        string(token.State(time.Now())),
		IsSingleUse:  token.IsSingleUse,
		CreatedAt:    token.CreatedAt,
		ExpiresAt:    token.ExpiresAt,
		DepositCount: token.DepositCount,
	}
}

// Create 创建新的投递令牌
func (h *TokenHandler) Create(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.CreateTokenInput{
		OwnerID:   ownerID,
		SingleUse: req.SingleUse,
	}
	switch req.ExpiresIn {
	case "":
	case "default":
		input.UseDefaultTTL = true
	default:
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			BadRequest(c, MsgInvalidDuration)
			return
		}
		input.TTL = &d
	}

	token, err := h.tokens.Create(input)
	if err != nil {
		h.log.Error("failed to create token", zap.Error(err))
		InternalError(c, MsgTokenCreateFailed)
		return
	}

	Created(c, toTokenResponse(token))
}

// List 返回属主的令牌列表
func (h *TokenHandler) List(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	includeDeleted := c.Query("includeDeleted") == "true"

	tokens, err := h.tokens.List(ownerID, includeDeleted)
	if err != nil {
		h.log.Error("failed to list tokens", zap.Error(err))
		InternalError(c, MsgTokenListFailed)
		return
	}

	items := make([]tokenResponse, 0, len(tokens))
	for i := range tokens {
		items = append(items, toTokenResponse(&tokens[i]))
	}

	Success(c, tokenListResponse{
		Items: items,
		Count: len(items),
	})
}

// Get 返回单个令牌详情
func (h *TokenHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	token, err := h.tokens.Get(c.Param("id"))
	if err != nil {
		h.respondTokenError(c, err)
		return
	}
	if token.OwnerID != ownerID {
		// 他人的令牌对属主 API 不可见
		NotFound(c, MsgTokenNotFound)
		return
	}

	Success(c, toTokenResponse(token))
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetActive 停用或重新启用令牌
func (h *TokenHandler) SetActive(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.tokens.SetActive(c.Param("id"), ownerID, *req.IsActive); err != nil {
		h.respondTokenError(c, err)
		return
	}

	token, err := h.tokens.Get(c.Param("id"))
	if err != nil {
		h.respondTokenError(c, err)
		return
	}
	Success(c, toTokenResponse(token))
}

// Delete 删除令牌，?permanent=true 时彻底删除
func (h *TokenHandler) Delete(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var err error
	if c.Query("permanent") == "true" {
		err = h.tokens.PermanentDelete(c.Param("id"), ownerID)
	} else {
		err = h.tokens.SoftDelete(c.Param("id"), ownerID)
	}
	if err != nil {
		h.respondTokenError(c, err)
		return
	}

	NoContent(c)
}

type bulkRequest struct {
	Permanent bool `json:"permanent"`
}

// DisableAll 停用属主全部令牌
func (h *TokenHandler) DisableAll(c *gin.Context) {
	h.bulk(c, func(ownerID int64) (int, error) {
		return h.lifecycle.DisableAll(ownerID)
	})
}

// EnableAll 重新启用属主全部可启用令牌
func (h *TokenHandler) EnableAll(c *gin.Context) {
	h.bulk(c, func(ownerID int64) (int, error) {
		return h.lifecycle.EnableAll(ownerID)
	})
}

// DeleteAll 删除属主全部令牌
func (h *TokenHandler) DeleteAll(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	h.bulk(c, func(ownerID int64) (int, error) {
		return h.lifecycle.DeleteAll(ownerID, req.Permanent)
	})
}

func (h *TokenHandler) bulk(c *gin.Context, op func(int64) (int, error)) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	count, err := op(ownerID)
	if err != nil {
		h.log.Error("bulk token operation failed", zap.Error(err))
		InternalError(c, MsgTokenUpdateFailed)
		return
	}

	Success(c, gin.H{"affected": count})
}

// Stats 返回属主的令牌与投递统计
func (h *TokenHandler) Stats(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	stats, err := h.lifecycle.Stats(ownerID)
	if err != nil {
		h.log.Error("failed to compute stats", zap.Error(err))
		InternalError(c, MsgStatsFailed)
		return
	}

	Success(c, stats)
}

// respondTokenError 把令牌业务错误映射为 HTTP 响应
func (h *TokenHandler) respondTokenError(c *gin.Context, err error) {
	switch err {
	case service.ErrTokenNotFound:
		NotFound(c, MsgTokenNotFound)
	case service.ErrForbidden:
		Forbidden(c, GetErrorMessage(err))
	case service.ErrTokenExpired:
		Gone(c, GetErrorMessage(err))
	case domain.ErrInvalidTokenID:
		BadRequest(c, GetErrorMessage(err))
	default:
		h.log.Error("token operation failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	}
}
