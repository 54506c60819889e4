package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 触发限流中间件 ====================

// TriggerRateLimit 按触发类型全局限流
//
//	router.POST("/api/pipeline/run",
//	    middleware.TriggerRateLimit(limiter, middleware.TriggerPipeline, 0),
//	    ctl.Run,
//	)
//
// interval 为 0 时使用默认值；下游返回非 2xx 时归还冷却窗口
func TriggerRateLimit(limiter *TriggerLimiter, t TriggerType, interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		interval = GetInterval(t)
	}
	key := string(t)

	return func(c *gin.Context) {
		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
					"trigger":     t,
				},
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusMultipleChoices {
			limiter.Reset(key)
		}
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("触发冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60
	if remainingSeconds == 0 {
		return fmt.Sprintf("触发冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("触发冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
