package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/auth"
	"anondrop/backend/internal/session"
)

// PinGate 收件箱 PIN 门禁中间件。
//
// 设置了 PIN 的属主必须先通过校验解锁会话才能访问收件箱；
// 未设置 PIN 的属主直接放行。
type PinGate struct {
	sessions *session.Manager
	pins     *auth.PinService
	log      *zap.Logger
}

// NewPinGate 创建 PIN 门禁中间件
func NewPinGate(sessions *session.Manager, pins *auth.PinService, log *zap.Logger) *PinGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &PinGate{
		sessions: sessions,
		pins:     pins,
		log:      log,
	}
}

// RequireUnlocked 要求收件箱处于解锁态
func (pg *PinGate) RequireUnlocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := OwnerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		hasPin, err := pg.pins.HasPin(ownerID)
		if err != nil {
			pg.log.Error("pin lookup failed",
				zap.Int64("owner_id", ownerID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			c.Abort()
			return
		}

		if hasPin && !pg.sessions.IsVerified(ownerID) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "inbox locked, pin verification required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
