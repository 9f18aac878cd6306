package httptransport

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webmail/backend/internal/blob"
	"webmail/backend/internal/domain"
	"webmail/backend/internal/service"
	"webmail/backend/internal/storage"
)

// EmailHandler 邮件读取处理器
type EmailHandler struct {
	emails *service.EmailService
	logger *zap.Logger
}

// NewEmailHandler 创建邮件读取处理器
func NewEmailHandler(emails *service.EmailService, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{emails: emails, logger: logger}
}

// List 获取邮件列表
// GET /v1/mailboxes/:id/emails?category=inbox&page=1&page_size=50
func (h *EmailHandler) List(c *gin.Context) {
	mailboxID := c.Param("id")
	category := domain.EmailCategory(c.DefaultQuery("category", string(domain.CategoryInbox)))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	emails, err := h.emails.List(c.Request.Context(), mailboxID, category, page, pageSize)
	if err != nil {
		h.logger.Error("list emails failed", zap.String("mailbox_id", mailboxID), zap.Error(err))
		InternalError(c, "获取邮件列表失败")
		return
	}

	Success(c, gin.H{
		"emails":    emails,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get 获取单封邮件详情
// GET /v1/mailboxes/:id/emails/:emailId
func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.emails.Get(c.Request.Context(), c.Param("id"), c.Param("emailId"))
	if err != nil {
		if errors.Is(err, storage.ErrEmailNotFound) {
			NotFound(c, "邮件不存在")
			return
		}
		h.logger.Error("get email failed", zap.Error(err))
		InternalError(c, "获取邮件失败")
		return
	}

	Success(c, email)
}

// MarkRead 标记邮件已读/未读
// POST /v1/mailboxes/:id/emails/:emailId/read
func (h *EmailHandler) MarkRead(c *gin.Context) {
	var req struct {
		Read *bool `json:"read"`
	}
	// 空请求体默认标记为已读
	_ = c.ShouldBindJSON(&req)
	read := true
	if req.Read != nil {
		read = *req.Read
	}

	err := h.emails.MarkRead(c.Request.Context(), c.Param("id"), c.Param("emailId"), read)
	if err != nil {
		if errors.Is(err, storage.ErrEmailNotFound) {
			NotFound(c, "邮件不存在")
			return
		}
		h.logger.Error("mark read failed", zap.Error(err))
		InternalError(c, "标记邮件失败")
		return
	}

	Success(c, gin.H{"read": read})
}

// Counts 获取邮件总数、未读数及按分类的统计
// GET /v1/mailboxes/:id/emails/counts
func (h *EmailHandler) Counts(c *gin.Context) {
	mailboxID := c.Param("id")

	total, unread, err := h.emails.Counts(c.Request.Context(), mailboxID)
	if err != nil {
		h.logger.Error("count emails failed", zap.Error(err))
		InternalError(c, "获取邮件统计失败")
		return
	}

	categories, err := h.emails.CategoryCounts(c.Request.Context(), mailboxID)
	if err != nil {
		h.logger.Error("count emails by category failed", zap.Error(err))
		InternalError(c, "获取邮件统计失败")
		return
	}

	Success(c, gin.H{
		"total":      total,
		"unread":     unread,
		"categories": categories,
	})
}

// Raw 下载原始 EML 报文
// GET /v1/mailboxes/:id/emails/:emailId/raw
func (h *EmailHandler) Raw(c *gin.Context) {
	data, contentType, err := h.emails.GetRaw(c.Request.Context(), c.Param("id"), c.Param("emailId"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, storage.ErrEmailNotFound) {
			NotFound(c, "邮件原文不存在")
			return
		}
		h.logger.Error("get raw email failed", zap.Error(err))
		InternalError(c, "获取邮件原文失败")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Param("emailId")+".eml"))
	c.Data(200, contentType, data)
}

// Attachment 下载附件
// GET /v1/mailboxes/:id/emails/:emailId/attachments/:attachmentId
func (h *EmailHandler) Attachment(c *gin.Context) {
	att, data, err := h.emails.GetAttachment(
		c.Request.Context(), c.Param("id"), c.Param("emailId"), c.Param("attachmentId"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, storage.ErrEmailNotFound) {
			NotFound(c, "附件不存在")
			return
		}
		h.logger.Error("get attachment failed", zap.Error(err))
		InternalError(c, "获取附件失败")
		return
	}

	// 文件名落库时做过 URL 编码，下载时还原
	name, err := url.PathUnescape(att.Filename)
	if err != nil {
		name = att.Filename
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(200, att.MimeType, data)
}
