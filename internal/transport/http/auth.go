package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "anondrop/backend/internal/auth/jwt"
	"anondrop/backend/internal/middleware"
	"anondrop/backend/internal/storage"
)

// AuthHandler 处理属主认证相关的 HTTP 请求。
//
// 属主以外部数字 ID 标识，没有用户名密码：首次出现即登记，
// 凭证换发成 JWT 对。收件箱的真正门禁是 PIN，不是这里。
type AuthHandler struct {
	owners     storage.OwnerRepository
	jwtManager *jwtpkg.Manager
	log        *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(owners storage.OwnerRepository, jwtManager *jwtpkg.Manager, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		owners:     owners,
		jwtManager: jwtManager,
		log:        log,
	}
}

type sessionRequest struct {
	OwnerID int64 `json:"ownerId" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	OwnerID      int64  `json:"ownerId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// CreateSession 为属主换发认证令牌
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OwnerID <= 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	owner, err := h.owners.GetOrCreateOwner(req.OwnerID)
	if err != nil {
		h.log.Error("failed to get or create owner", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	if err := h.owners.TouchOwner(owner.ID, time.Now()); err != nil {
		h.log.Warn("failed to touch owner", zap.Int64("owner_id", owner.ID), zap.Error(err))
	}

	tokens, err := h.jwtManager.GenerateTokenPair(owner.ID)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	Success(c, authResponse{
		OwnerID:      owner.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 刷新访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch err {
		case jwtpkg.ErrInvalidToken:
			Unauthorized(c, "刷新令牌无效")
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
	})
}

// Me 返回当前认证属主的信息
func (h *AuthHandler) Me(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	owner, err := h.owners.GetOwner(ownerID)
	if err != nil {
		if err == storage.ErrOwnerNotFound {
			NotFound(c, "属主不存在")
			return
		}
		h.log.Error("failed to get owner", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"ownerId":    owner.ID,
		"hasPin":     owner.HasPin(),
		"createdAt":  owner.CreatedAt,
		"lastSeenAt": owner.LastSeenAt,
	})
}
