package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

// CreateEmail 以单个事务写入一封入站邮件的全部行。
//
// 事务内容：Email 一行、EmailSender 一行、每个收件人各一行，
// 以及邮箱 storage_used 的自增。自增用 SQL 表达式在数据库侧完成，
// 并发投递同一邮箱时不会丢失更新。
func (s *Store) CreateEmail(ctx context.Context, write *storage.EmailWrite) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(write.Email).Error; err != nil {
			return err
		}

		if len(write.Recipients) > 0 {
			if err := tx.Create(&write.Recipients).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(write.Sender).Error; err != nil {
			return err
		}

		result := tx.Model(&domain.Mailbox{}).
			Where("id = ?", write.Email.MailboxID).
			UpdateColumn("storage_used", gorm.Expr("storage_used + ?", write.Email.Size))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMailboxNotFound
		}

		return nil
	})
}

// GetEmail 获取单封邮件，附带发件人、收件人与附件元数据
func (s *Store) GetEmail(ctx context.Context, mailboxID, emailID string) (*domain.Email, error) {
	var email domain.Email
	err := s.db.WithContext(ctx).Where("id = ? AND mailbox_id = ?", emailID, mailboxID).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrEmailNotFound
		}
		return nil, err
	}

	var sender domain.EmailSender
	if err := s.db.WithContext(ctx).Where("email_id = ?", emailID).First(&sender).Error; err == nil {
		email.Sender = &sender
	}

	if err := s.db.WithContext(ctx).Where("email_id = ?", emailID).Find(&email.Recipients).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("email_id = ?", emailID).Find(&email.Attachments).Error; err != nil {
		return nil, err
	}

	return &email, nil
}

// ListEmails 按分类分页列出邮箱内的邮件，按接收时间倒序
func (s *Store) ListEmails(ctx context.Context, mailboxID string, category domain.EmailCategory, limit, offset int) ([]domain.Email, error) {
	var emails []domain.Email
	query := s.db.WithContext(ctx).Where("mailbox_id = ?", mailboxID)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&emails).Error
	return emails, err
}

// MarkEmailRead 标记邮件已读/未读
func (s *Store) MarkEmailRead(ctx context.Context, mailboxID, emailID string, read bool) error {
	result := s.db.WithContext(ctx).Model(&domain.Email{}).
		Where("id = ? AND mailbox_id = ?", emailID, mailboxID).
		Update("is_read", read)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEmailNotFound
	}
	return nil
}

// CountEmails 统计邮箱内邮件总数与未读数
func (s *Store) CountEmails(ctx context.Context, mailboxID string) (int64, int64, error) {
	var total, unread int64
	if err := s.db.WithContext(ctx).Model(&domain.Email{}).
		Where("mailbox_id = ?", mailboxID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&domain.Email{}).
		Where("mailbox_id = ? AND is_read = ?", mailboxID, false).Count(&unread).Error; err != nil {
		return 0, 0, err
	}
	return total, unread, nil
}

// CountEmailsByCategory 按分类统计邮件总数与未读数
func (s *Store) CountEmailsByCategory(ctx context.Context, mailboxID string) ([]storage.CategoryCount, error) {
	var counts []storage.CategoryCount
	err := s.db.WithContext(ctx).Model(&domain.Email{}).
		Select("category, COUNT(*) AS total, SUM(CASE WHEN is_read THEN 0 ELSE 1 END) AS unread").
		Where("mailbox_id = ?", mailboxID).
		Group("category").
		Order("category").
		Scan(&counts).Error
	return counts, err
}

// SaveAttachment 保存附件元数据。
// 元数据落库独立于附件内容上传的成败。
func (s *Store) SaveAttachment(ctx context.Context, attachment *domain.EmailAttachment) error {
	return s.db.WithContext(ctx).Create(attachment).Error
}

// ListAttachments 列出邮件的全部附件元数据
func (s *Store) ListAttachments(ctx context.Context, emailID string) ([]domain.EmailAttachment, error) {
	var attachments []domain.EmailAttachment
	err := s.db.WithContext(ctx).Where("email_id = ?", emailID).Find(&attachments).Error
	return attachments, err
}

// ========== Notification Repository ==========

// SaveNotification 保存推送订阅（按端点幂等）。
// 端点已存在时覆盖密钥材料与归属用户，保留原行的标识符。
func (s *Store) SaveNotification(ctx context.Context, sub *domain.UserNotification) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "expires_at"}),
	}).Create(sub).Error
}

// ListNotificationsForMailbox 查询对邮箱有访问权的全部用户的推送订阅
func (s *Store) ListNotificationsForMailbox(ctx context.Context, mailboxID string) ([]domain.UserNotification, error) {
	var subs []domain.UserNotification
	err := s.db.WithContext(ctx).
		Joins("JOIN mailbox_for_users ON mailbox_for_users.user_id = user_notifications.user_id").
		Where("mailbox_for_users.mailbox_id = ?", mailboxID).
		Find(&subs).Error
	return subs, err
}

// DeleteNotificationByEndpoint 按端点删除失效订阅
func (s *Store) DeleteNotificationByEndpoint(ctx context.Context, endpoint string) error {
	result := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&domain.UserNotification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrSubscriptionNotFound
	}
	return nil
}

// ListNotificationsByUserID 列出用户的全部推送订阅
func (s *Store) ListNotificationsByUserID(ctx context.Context, userID string) ([]domain.UserNotification, error) {
	var subs []domain.UserNotification
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}
