package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webmail/backend/internal/service"
)

// InboundHandler 入站邮件 Webhook 处理器
//
// 该端点的请求与响应格式是边缘转发节点固定的契约，
// 不使用统一响应封装。
type InboundHandler struct {
	ingest *service.IngestService
	logger *zap.Logger
}

// NewInboundHandler 创建入站邮件处理器
func NewInboundHandler(ingest *service.IngestService, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{ingest: ingest, logger: logger}
}

// inboundRequest 转发节点上报的邮件载荷
type inboundRequest struct {
	Email string `json:"email"` // 原始 RFC 822 报文
	From  string `json:"from"`  // 信封发件地址
	To    string `json:"to"`    // 信封收件地址
}

// Receive 处理 POST /api/v1/inbound?zone=<domain>
func (h *InboundHandler) Receive(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request"})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		Zone:     c.Query("zone"),
		AuthKey:  c.GetHeader("x-auth"),
		RawEmail: req.Email,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      result.EmailID,
	})
}

// writeError 把管道错误映射为转发节点契约要求的 400 响应
func (h *InboundHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request"})
	case errors.Is(err, service.ErrMalformedEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
	case errors.Is(err, service.ErrMailboxNotResolved):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unauthorized"})
	case errors.Is(err, service.ErrOverQuota):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mailbox is full"})
	default:
		h.logger.Error("inbound delivery failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
