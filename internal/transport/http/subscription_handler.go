package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webmail/backend/internal/service"
	"webmail/backend/internal/storage"
)

// SubscriptionHandler 推送订阅处理器
//
// 用户身份由上游网关注入的 X-User-ID 头提供。
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	logger        *zap.Logger
}

// NewSubscriptionHandler 创建推送订阅处理器
func NewSubscriptionHandler(subscriptions *service.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// subscribeRequest 浏览器 PushSubscription 的标准 JSON 形状
type subscribeRequest struct {
	Endpoint       string `json:"endpoint" binding:"required"`
	ExpirationTime *int64 `json:"expirationTime"` // 毫秒时间戳，可为空
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe 注册推送订阅
// POST /v1/notifications/subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		BadRequest(c, "缺少用户标识")
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误")
		return
	}

	var expiresAt *time.Time
	if req.ExpirationTime != nil {
		t := time.UnixMilli(*req.ExpirationTime)
		expiresAt = &t
	}

	sub, err := h.subscriptions.Register(c.Request.Context(), service.RegisterInput{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubscription) {
			BadRequest(c, "订阅参数不完整")
			return
		}
		h.logger.Error("register subscription failed", zap.Error(err))
		InternalError(c, "注册订阅失败")
		return
	}

	Created(c, sub)
}

// Unsubscribe 删除推送订阅
// DELETE /v1/notifications/subscriptions
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		BadRequest(c, "缺少用户标识")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误")
		return
	}

	err := h.subscriptions.Remove(c.Request.Context(), userID, req.Endpoint)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSubscriptionNotFound):
			NotFound(c, "订阅不存在")
		case errors.Is(err, service.ErrNotSubscriptionOwner):
			Forbidden(c, "无权操作该订阅")
		default:
			h.logger.Error("remove subscription failed", zap.Error(err))
			InternalError(c, "删除订阅失败")
		}
		return
	}

	Success(c, gin.H{"deleted": true})
}

// List 列出当前用户的全部订阅
// GET /v1/notifications/subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		BadRequest(c, "缺少用户标识")
		return
	}

	subs, err := h.subscriptions.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list subscriptions failed", zap.Error(err))
		InternalError(c, "获取订阅列表失败")
		return
	}

	Success(c, gin.H{"subscriptions": subs})
}
