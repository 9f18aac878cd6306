package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webmail/backend/internal/service"
	"webmail/backend/internal/storage"
)

// MailboxHandler 邮箱元数据处理器
type MailboxHandler struct {
	mailboxes *service.MailboxService
	logger    *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器
func NewMailboxHandler(mailboxes *service.MailboxService, logger *zap.Logger) *MailboxHandler {
	return &MailboxHandler{mailboxes: mailboxes, logger: logger}
}

// List 列出当前用户可访问的邮箱
// GET /v1/mailboxes
func (h *MailboxHandler) List(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		BadRequest(c, "缺少用户标识")
		return
	}

	mailboxes, err := h.mailboxes.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list mailboxes failed", zap.String("user_id", userID), zap.Error(err))
		InternalError(c, "获取邮箱列表失败")
		return
	}

	Success(c, gin.H{"mailboxes": mailboxes})
}

// Get 获取单个邮箱（含存储用量）
// GET /v1/mailboxes/:id
func (h *MailboxHandler) Get(c *gin.Context) {
	mailbox, err := h.mailboxes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			NotFound(c, "邮箱不存在")
			return
		}
		h.logger.Error("get mailbox failed", zap.Error(err))
		InternalError(c, "获取邮箱失败")
		return
	}

	Success(c, mailbox)
}
