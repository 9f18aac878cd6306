package service

import (
	"context"
	"fmt"

	"webmail/backend/internal/blob"
	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

// 列表分页默认值
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// EmailService 封装邮箱读路径（列表、详情、已读标记、侧边栏计数）。
type EmailService struct {
	store storage.EmailRepository
	blobs BlobReader
}

// BlobReader 读取已上传的对象内容。
type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// NewEmailService 创建邮件读服务。
func NewEmailService(store storage.EmailRepository, blobs BlobReader) *EmailService {
	return &EmailService{store: store, blobs: blobs}
}

// List 按分类分页列出邮箱内的邮件。
func (s *EmailService) List(ctx context.Context, mailboxID string, category domain.EmailCategory, page, pageSize int) ([]domain.Email, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return s.store.ListEmails(ctx, mailboxID, category, pageSize, (page-1)*pageSize)
}

// Get 获取单封邮件详情（含发件人、收件人、附件元数据）。
func (s *EmailService) Get(ctx context.Context, mailboxID, emailID string) (*domain.Email, error) {
	return s.store.GetEmail(ctx, mailboxID, emailID)
}

// MarkRead 标记邮件已读/未读。
func (s *EmailService) MarkRead(ctx context.Context, mailboxID, emailID string, read bool) error {
	return s.store.MarkEmailRead(ctx, mailboxID, emailID, read)
}

// Counts 返回邮箱内邮件总数与未读数（侧边栏用）。
func (s *EmailService) Counts(ctx context.Context, mailboxID string) (total, unread int64, err error) {
	return s.store.CountEmails(ctx, mailboxID)
}

// CategoryCounts 返回每个分类的总数与未读数（侧边栏分类角标用）。
func (s *EmailService) CategoryCounts(ctx context.Context, mailboxID string) ([]storage.CategoryCount, error) {
	return s.store.CountEmailsByCategory(ctx, mailboxID)
}

// GetRaw 读取邮件的原始 RFC 822 报文。
func (s *EmailService) GetRaw(ctx context.Context, mailboxID, emailID string) ([]byte, string, error) {
	if _, err := s.store.GetEmail(ctx, mailboxID, emailID); err != nil {
		return nil, "", err
	}
	return s.blobs.Get(ctx, blob.EmailKey(mailboxID, emailID))
}

// GetAttachment 读取附件内容及其元数据。
func (s *EmailService) GetAttachment(ctx context.Context, mailboxID, emailID, attachmentID string) (*domain.EmailAttachment, []byte, error) {
	if _, err := s.store.GetEmail(ctx, mailboxID, emailID); err != nil {
		return nil, nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	for i := range attachments {
		att := &attachments[i]
		if att.ID != attachmentID {
			continue
		}
		// 存储键里的文件名已经是落库时编码好的形式
		key := fmt.Sprintf("%s/%s/%s/%s", mailboxID, emailID, att.ID, att.Filename)
		data, _, err := s.blobs.Get(ctx, key)
		if err != nil {
			return att, nil, err
		}
		return att, data, nil
	}
	return nil, nil, storage.ErrEmailNotFound
}
