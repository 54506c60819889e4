package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"metal_price_tracker/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger 请求日志，透传或生成 X-Request-ID
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", requestID,
		}
		if len(c.Errors) > 0 {
			log.Warn("[HTTP] 请求失败", append(kv, "error", c.Errors.String())...)
			return
		}
		log.Debug("[HTTP] 请求完成", kv...)
	}
}
