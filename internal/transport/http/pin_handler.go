package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/auth"
	"anondrop/backend/internal/domain"
	"anondrop/backend/internal/middleware"
	"anondrop/backend/internal/session"
)

// PinHandler 处理收件箱 PIN 的设置与校验。
//
// 校验走短会话：连续失败达到阈值会话即销毁，
// 属主必须重新发起校验，失败计数从零开始。
type PinHandler struct {
	pins     *auth.PinService
	sessions *session.Manager
	log      *zap.Logger
}

// NewPinHandler 创建 PIN 处理器
func NewPinHandler(pins *auth.PinService, sessions *session.Manager, log *zap.Logger) *PinHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PinHandler{
		pins:     pins,
		sessions: sessions,
		log:      log,
	}
}

type setPinRequest struct {
	Pin        string `json:"pin" binding:"required"`
	ConfirmPin string `json:"confirmPin" binding:"required"`
}

type verifyPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

// Set 设置或更换收件箱 PIN
func (h *PinHandler) Set(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req setPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Pin != req.ConfirmPin {
		BadRequest(c, MsgPinMismatch)
		return
	}

	if err := h.pins.SetPin(ownerID, req.Pin); err != nil {
		if errors.Is(err, domain.ErrInvalidPinFormat) {
			BadRequest(c, GetErrorMessage(domain.ErrInvalidPinFormat))
			return
		}
		h.log.Error("failed to set pin", zap.Error(err))
		InternalError(c, MsgPinSetFailed)
		return
	}

	// 换 PIN 后之前的解锁态作废
	_ = h.sessions.Cancel(ownerID)

	Success(c, gin.H{"hasPin": true})
}

// Verify 校验 PIN 并解锁收件箱
func (h *PinHandler) Verify(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req verifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	// 没有进行中的会话就开一个
	if _, err := h.sessions.Get(ownerID); errors.Is(err, session.ErrSessionNotFound) {
		if _, err := h.sessions.Begin(ownerID, session.StateAwaitingPin); err != nil {
			h.log.Error("failed to begin session", zap.Error(err))
			InternalError(c, MsgPinVerifyFailed)
			return
		}
	}

	okPin, err := h.pins.Verify(ownerID, req.Pin)
	if err != nil {
		if errors.Is(err, auth.ErrPinNotSet) {
			BadRequest(c, GetErrorMessage(auth.ErrPinNotSet))
			return
		}
		h.log.Error("failed to verify pin", zap.Error(err))
		InternalError(c, MsgPinVerifyFailed)
		return
	}

	if !okPin {
		locked, remaining, err := h.sessions.RecordPinFailure(ownerID)
		if err != nil {
			h.log.Error("failed to record pin failure", zap.Error(err))
			InternalError(c, MsgPinVerifyFailed)
			return
		}
		if locked {
			Forbidden(c, MsgSessionLocked)
			return
		}
		c.JSON(http.StatusUnauthorized, Response{
			Code: CodeUnauthorized,
			Msg:  MsgPinVerifyFailed,
			Data: gin.H{"attemptsRemaining": remaining},
		})
		return
	}

	if err := h.sessions.MarkVerified(ownerID); err != nil {
		h.log.Error("failed to mark session verified", zap.Error(err))
		InternalError(c, MsgPinVerifyFailed)
		return
	}

	Success(c, gin.H{"unlocked": true})
}

// Lock 主动锁定收件箱，清除当前会话
func (h *PinHandler) Lock(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.sessions.Cancel(ownerID); err != nil {
		h.log.Error("failed to cancel session", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"unlocked": false})
}
