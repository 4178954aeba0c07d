package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/storage"
)

// RateLimiter 基于存储计数器的请求限流中间件。
type RateLimiter struct {
	store  storage.RateLimitRepository
	logger *zap.Logger
}

// NewRateLimiter 创建限流中间件
func NewRateLimiter(store storage.RateLimitRepository, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		logger: logger,
	}
}

// Limit 按客户端来源限制每窗口的请求数。
//
// 计数键只保留来源地址的哈希，原始 IP 不落存储。
func (rl *RateLimiter) Limit(name string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := name + ":" + hashClientKey(c.ClientIP())

		count, err := rl.store.IncrementRateLimit(key, window)
		if err != nil {
			// 限流后端故障时放行，不让计数器拖垮主链路
			rl.logger.Warn("rate limit backend unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > max {
			c.Header("Retry-After", window.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func hashClientKey(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
