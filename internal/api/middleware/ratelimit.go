package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Limiter 抽象非阻塞限流器，便于测试替换。
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// RateLimit 对路由应用令牌桶限流。
//
// Redis 故障时放行（fail-open），避免限流子系统拖垮搜索链路。
func RateLimit(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		allowed, err := limiter.Allow(c.Request.Context())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
