package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"webmail/backend/internal/storage"
)

// RateLimiter 基于 IP 的限流中间件
//
// 配置了 Redis 时使用共享计数器（多实例部署下限流一致），
// 否则退化为进程内令牌桶。
type RateLimiter struct {
	counter  storage.RateLimitRepository // 可为 nil
	perMin   int
	logger   *zap.Logger
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter 创建限流中间件，counter 为 nil 时使用进程内令牌桶
func NewRateLimiter(counter storage.RateLimitRepository, perMin int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		perMin:   perMin,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Limit 返回 gin 中间件
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed := true
		if rl.counter != nil {
			count, err := rl.counter.IncrementRateLimit(c.Request.Context(), ip, time.Minute)
			if err != nil {
				// Redis 不可用时放行，不阻塞业务
				rl.logger.Warn("rate limit counter unavailable", zap.Error(err))
			} else if count > int64(rl.perMin) {
				allowed = false
			}
		} else {
			allowed = rl.localLimiter(ip).Allow()
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// localLimiter 获取或创建指定 IP 的进程内令牌桶
func (rl *RateLimiter) localLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rl.perMin)/60.0), rl.perMin)
		rl.limiters[ip] = lim
	}
	return lim
}
