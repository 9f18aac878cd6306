package service

import (
	"context"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

// MailboxService 封装邮箱元数据的读路径。
type MailboxService struct {
	store storage.MailboxRepository
}

// NewMailboxService 创建邮箱服务。
func NewMailboxService(store storage.MailboxRepository) *MailboxService {
	return &MailboxService{store: store}
}

// ListForUser 列出用户可访问的全部邮箱。
func (s *MailboxService) ListForUser(ctx context.Context, userID string) ([]domain.Mailbox, error) {
	return s.store.ListMailboxesByUserID(ctx, userID)
}

// Get 获取单个邮箱（含配额用量）。
func (s *MailboxService) Get(ctx context.Context, id string) (*domain.Mailbox, error) {
	return s.store.GetMailbox(ctx, id)
}
