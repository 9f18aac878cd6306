package storage

import (
	"context"
	"errors"
	"time"

	"webmail/backend/internal/domain"
)

var (
	// ErrMailboxNotFound 邮箱未找到错误
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrEmailNotFound 邮件未找到错误
	ErrEmailNotFound = errors.New("email not found")
	// ErrDomainNotFound 域名路由未找到错误
	ErrDomainNotFound = errors.New("domain not found")
	// ErrAliasNotFound 别名未找到错误
	ErrAliasNotFound = errors.New("alias not found")
	// ErrSubscriptionNotFound 推送订阅未找到错误
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
)

// DomainRouteRepository 定义入站路由查询操作（只读）。
type DomainRouteRepository interface {
	// GetDefaultDomain 按 (域名, 凭证) 查询共享域名记录。
	GetDefaultDomain(ctx context.Context, zone, authKey string) (*domain.DefaultDomain, error)
	// GetCustomDomain 按 (域名, 凭证) 查询自定义域名绑定。
	GetCustomDomain(ctx context.Context, zone, authKey string) (*domain.MailboxCustomDomain, error)
	// GetAliasByAddress 按收件地址查询共享域名别名。
	GetAliasByAddress(ctx context.Context, address string) (*domain.MailboxAlias, error)
}

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error
	GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error)
	SaveMailboxForUser(ctx context.Context, link *domain.MailboxForUser) error
	ListMailboxesByUserID(ctx context.Context, userID string) ([]domain.Mailbox, error)
	SaveAlias(ctx context.Context, alias *domain.MailboxAlias) error
	SaveDefaultDomain(ctx context.Context, d *domain.DefaultDomain) error
	SaveCustomDomain(ctx context.Context, d *domain.MailboxCustomDomain) error
}

// EmailWrite 聚合一次入站投递需要原子落库的全部行。
type EmailWrite struct {
	Email      *domain.Email
	Sender     *domain.EmailSender
	Recipients []domain.EmailRecipient
}

// CategoryCount 某一分类下的邮件总数与未读数。
type CategoryCount struct {
	Category domain.EmailCategory `json:"category"`
	Total    int64                `json:"total"`
	Unread   int64                `json:"unread"`
}

// EmailRepository 定义邮件数据存取操作。
type EmailRepository interface {
	// CreateEmail 以单个事务写入邮件、发件人、收件人，并把邮箱
	// 已用存储原子地加上 Email.Size。四个效果要么全部提交要么全部回滚。
	CreateEmail(ctx context.Context, write *EmailWrite) error
	GetEmail(ctx context.Context, mailboxID, emailID string) (*domain.Email, error)
	ListEmails(ctx context.Context, mailboxID string, category domain.EmailCategory, limit, offset int) ([]domain.Email, error)
	MarkEmailRead(ctx context.Context, mailboxID, emailID string, read bool) error
	CountEmails(ctx context.Context, mailboxID string) (total, unread int64, err error)
	// CountEmailsByCategory 按分类统计邮件总数与未读数（侧边栏用）。
	CountEmailsByCategory(ctx context.Context, mailboxID string) ([]CategoryCount, error)
	SaveAttachment(ctx context.Context, attachment *domain.EmailAttachment) error
	ListAttachments(ctx context.Context, emailID string) ([]domain.EmailAttachment, error)
}

// NotificationRepository 定义推送订阅存取操作。
type NotificationRepository interface {
	SaveNotification(ctx context.Context, sub *domain.UserNotification) error
	// ListNotificationsForMailbox 查询所有对该邮箱有访问权的用户的订阅
	// （UserNotification 经 MailboxForUser 关联）。
	ListNotificationsForMailbox(ctx context.Context, mailboxID string) ([]domain.UserNotification, error)
	// DeleteNotificationByEndpoint 按端点删除失效订阅。
	DeleteNotificationByEndpoint(ctx context.Context, endpoint string) error
	ListNotificationsByUserID(ctx context.Context, userID string) ([]domain.UserNotification, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	SaveUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// RateLimitRepository 定义限流计数操作。
type RateLimitRepository interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	DomainRouteRepository
	MailboxRepository
	EmailRepository
	NotificationRepository
	UserRepository

	Close() error
	Health(ctx context.Context) error
}
