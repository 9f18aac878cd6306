package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"webmail/backend/internal/config"
	"webmail/backend/internal/middleware"
	"webmail/backend/internal/monitoring"
	"webmail/backend/internal/service"
	"webmail/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	IngestService       *service.IngestService
	MailboxService      *service.MailboxService
	EmailService        *service.EmailService
	SubscriptionService *service.SubscriptionService
	Metrics             *monitoring.Metrics
	HealthChecker       *monitoring.HealthChecker
	RateLimitCounter    storage.RateLimitRepository // 可为 nil，退化为进程内限流
	Registry            *prometheus.Registry        // 可为 nil，使用默认 registry
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	// 使用自定义中间件替代默认中间件
	router.Use(mm.PanicRecovery())
	router.Use(mm.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	inboundHandler := NewInboundHandler(deps.IngestService, deps.Logger)
	mailboxHandler := NewMailboxHandler(deps.MailboxService, deps.Logger)
	emailHandler := NewEmailHandler(deps.EmailService, deps.Logger)
	subscriptionHandler := NewSubscriptionHandler(deps.SubscriptionService, deps.Logger)

	rateLimiter := middleware.NewRateLimiter(
		deps.RateLimitCounter, deps.Config.Ingest.RatePerMin, deps.Logger)

	// 监控端点
	var metricsHandler gin.HandlerFunc
	if deps.Registry != nil {
		metricsHandler = gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	} else {
		metricsHandler = gin.WrapH(promhttp.Handler())
	}
	router.GET("/metrics", metricsHandler)
	if deps.HealthChecker != nil {
		router.GET("/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}

	// 入站投递 Webhook：限流 + 邮件体大小限制
	api := router.Group("/api/v1")
	{
		api.POST("/inbound",
			rateLimiter.Limit(),
			middleware.BodySizeLimit(deps.Config.Ingest.MaxBodySize),
			inboundHandler.Receive,
		)
	}

	// V1 API（前端使用）
	v1 := router.Group("/v1")
	v1.Use(middleware.BodySizeLimit(1 * 1024 * 1024))
	{
		v1.GET("/mailboxes", mailboxHandler.List)

		mailboxes := v1.Group("/mailboxes/:id")
		{
			mailboxes.GET("", mailboxHandler.Get)
			mailboxes.GET("/emails", emailHandler.List)
			mailboxes.GET("/emails/counts", emailHandler.Counts)
			mailboxes.GET("/emails/:emailId", emailHandler.Get)
			mailboxes.POST("/emails/:emailId/read", emailHandler.MarkRead)
			mailboxes.GET("/emails/:emailId/raw", emailHandler.Raw)
			mailboxes.GET("/emails/:emailId/attachments/:attachmentId", emailHandler.Attachment)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("/subscriptions", subscriptionHandler.List)
			notifications.POST("/subscriptions", subscriptionHandler.Subscribe)
			notifications.DELETE("/subscriptions", subscriptionHandler.Unsubscribe)
		}
	}

	return router
}
