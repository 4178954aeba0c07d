package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// 默认请求体大小限制
	DefaultBodyLimit = 10 * 1024 * 1024 // 10MB

	// SmallBodyLimit 普通 JSON API 请求
	SmallBodyLimit = 1 * 1024 * 1024 // 1MB
)

// BodySizeLimit 限制请求体大小的中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 先看 Content-Length，声明超限直接拒绝
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request body too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
				"size":    c.Request.ContentLength,
			})
			c.Abort()
			return
		}

		// 再限制实际读取量，防止 Content-Length 撒谎
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()

		if c.Errors != nil {
			for _, err := range c.Errors {
				if err.Err != nil && err.Err.Error() == "http: request body too large" {
					c.JSON(http.StatusRequestEntityTooLarge, gin.H{
						"error":   "Request body too large",
						"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
						"limit":   maxBytes,
					})
					return
				}
			}
		}
	}
}

// DepositBodyLimit 投递端点的请求体限制。
//
// 文件上限之外留出 multipart 边界与文本字段的余量。
func DepositBodyLimit(maxFileSize int64) gin.HandlerFunc {
	const overhead = 1 * 1024 * 1024
	return BodySizeLimit(maxFileSize + overhead)
}
