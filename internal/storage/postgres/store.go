package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

// Store 关系型存储实现（PostgreSQL / MySQL，经由 GORM）。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Mailbox{},
		&domain.MailboxForUser{},
		&domain.DefaultDomain{},
		&domain.MailboxAlias{},
		&domain.MailboxCustomDomain{},
		&domain.Email{},
		&domain.EmailRecipient{},
		&domain.EmailSender{},
		&domain.EmailAttachment{},
		&domain.UserNotification{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连通性
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ========== Domain Route Repository ==========

// GetDefaultDomain 按 (域名, 凭证) 查询共享域名记录
func (s *Store) GetDefaultDomain(ctx context.Context, zone, authKey string) (*domain.DefaultDomain, error) {
	var d domain.DefaultDomain
	err := s.db.WithContext(ctx).Where("domain = ? AND auth_key = ?", zone, authKey).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrDomainNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetCustomDomain 按 (域名, 凭证) 查询自定义域名绑定
func (s *Store) GetCustomDomain(ctx context.Context, zone, authKey string) (*domain.MailboxCustomDomain, error) {
	var d domain.MailboxCustomDomain
	err := s.db.WithContext(ctx).Where("domain = ? AND auth_key = ?", zone, authKey).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrDomainNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetAliasByAddress 按收件地址查询别名
func (s *Store) GetAliasByAddress(ctx context.Context, address string) (*domain.MailboxAlias, error) {
	var alias domain.MailboxAlias
	err := s.db.WithContext(ctx).Where("alias = ?", address).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, err
	}
	return &alias, nil
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱信息
func (s *Store) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	return s.db.WithContext(ctx).Save(mailbox).Error
}

// GetMailbox 根据 ID 获取邮箱
func (s *Store) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailboxNotFound
		}
		return nil, err
	}
	return &mailbox, nil
}

// SaveMailboxForUser 保存邮箱与用户的关联
func (s *Store) SaveMailboxForUser(ctx context.Context, link *domain.MailboxForUser) error {
	return s.db.WithContext(ctx).Save(link).Error
}

// ListMailboxesByUserID 返回指定用户的全部邮箱
func (s *Store) ListMailboxesByUserID(ctx context.Context, userID string) ([]domain.Mailbox, error) {
	var mailboxes []domain.Mailbox
	err := s.db.WithContext(ctx).
		Joins("JOIN mailbox_for_users ON mailbox_for_users.mailbox_id = mailboxes.id").
		Where("mailbox_for_users.user_id = ?", userID).
		Find(&mailboxes).Error
	return mailboxes, err
}

// SaveAlias 保存邮箱别名
func (s *Store) SaveAlias(ctx context.Context, alias *domain.MailboxAlias) error {
	return s.db.WithContext(ctx).Save(alias).Error
}

// SaveDefaultDomain 保存共享域名记录
func (s *Store) SaveDefaultDomain(ctx context.Context, d *domain.DefaultDomain) error {
	return s.db.WithContext(ctx).Save(d).Error
}

// SaveCustomDomain 保存自定义域名绑定
func (s *Store) SaveCustomDomain(ctx context.Context, d *domain.MailboxCustomDomain) error {
	return s.db.WithContext(ctx).Save(d).Error
}

// ========== User Repository ==========

// SaveUser 保存用户信息
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
