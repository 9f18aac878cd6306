package memory

import (
	"context"
	"sort"
	"sync"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

// Store 内存存储实现，用于开发模式与测试。
//
// 所有写操作持有写锁，storage_used 的自增在锁内完成，
// 与关系型实现一样保证并发投递不丢失更新。
type Store struct {
	mu sync.RWMutex

	users          map[string]*domain.User
	mailboxes      map[string]*domain.Mailbox
	mailboxUsers   []domain.MailboxForUser
	defaultDomains []domain.DefaultDomain
	customDomains  []domain.MailboxCustomDomain
	aliases        map[string]*domain.MailboxAlias // 按别名地址索引
	emails         map[string]*domain.Email
	senders        map[string]*domain.EmailSender     // 按 emailID 索引
	recipients     map[string][]domain.EmailRecipient // 按 emailID 索引
	attachments    map[string][]domain.EmailAttachment
	notifications  map[string]*domain.UserNotification // 按端点索引
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		mailboxes:     make(map[string]*domain.Mailbox),
		aliases:       make(map[string]*domain.MailboxAlias),
		emails:        make(map[string]*domain.Email),
		senders:       make(map[string]*domain.EmailSender),
		recipients:    make(map[string][]domain.EmailRecipient),
		attachments:   make(map[string][]domain.EmailAttachment),
		notifications: make(map[string]*domain.UserNotification),
	}
}

// Close 实现 storage.Store
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store
func (s *Store) Health(ctx context.Context) error { return nil }

// ========== Domain Route Repository ==========

func (s *Store) GetDefaultDomain(ctx context.Context, zone, authKey string) (*domain.DefaultDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.defaultDomains {
		d := &s.defaultDomains[i]
		if d.Domain == zone && d.AuthKey == authKey {
			copied := *d
			return &copied, nil
		}
	}
	return nil, storage.ErrDomainNotFound
}

func (s *Store) GetCustomDomain(ctx context.Context, zone, authKey string) (*domain.MailboxCustomDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.customDomains {
		d := &s.customDomains[i]
		if d.Domain == zone && d.AuthKey == authKey {
			copied := *d
			return &copied, nil
		}
	}
	return nil, storage.ErrDomainNotFound
}

func (s *Store) GetAliasByAddress(ctx context.Context, address string) (*domain.MailboxAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if alias, ok := s.aliases[address]; ok {
		copied := *alias
		return &copied, nil
	}
	return nil, storage.ErrAliasNotFound
}

// ========== Mailbox Repository ==========

func (s *Store) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *mailbox
	s.mailboxes[mailbox.ID] = &copied
	return nil
}

func (s *Store) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mailbox, ok := s.mailboxes[id]; ok {
		copied := *mailbox
		return &copied, nil
	}
	return nil, storage.ErrMailboxNotFound
}

func (s *Store) SaveMailboxForUser(ctx context.Context, link *domain.MailboxForUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.mailboxUsers {
		if l.MailboxID == link.MailboxID && l.UserID == link.UserID {
			return nil
		}
	}
	s.mailboxUsers = append(s.mailboxUsers, *link)
	return nil
}

func (s *Store) ListMailboxesByUserID(ctx context.Context, userID string) ([]domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var mailboxes []domain.Mailbox
	for _, l := range s.mailboxUsers {
		if l.UserID != userID {
			continue
		}
		if mailbox, ok := s.mailboxes[l.MailboxID]; ok {
			mailboxes = append(mailboxes, *mailbox)
		}
	}
	return mailboxes, nil
}

func (s *Store) SaveAlias(ctx context.Context, alias *domain.MailboxAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *alias
	s.aliases[alias.Alias] = &copied
	return nil
}

func (s *Store) SaveDefaultDomain(ctx context.Context, d *domain.DefaultDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultDomains = append(s.defaultDomains, *d)
	return nil
}

func (s *Store) SaveCustomDomain(ctx context.Context, d *domain.MailboxCustomDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customDomains = append(s.customDomains, *d)
	return nil
}

// ========== User Repository ==========

func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, storage.ErrUserNotFound
}

// ========== Email Repository ==========

// CreateEmail 在单个临界区内完成邮件、发件人、收件人写入与存储计数自增，
// 模拟关系型实现的事务语义。
func (s *Store) CreateEmail(ctx context.Context, write *storage.EmailWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailbox, ok := s.mailboxes[write.Email.MailboxID]
	if !ok {
		return storage.ErrMailboxNotFound
	}

	email := *write.Email
	s.emails[email.ID] = &email

	sender := *write.Sender
	s.senders[email.ID] = &sender

	s.recipients[email.ID] = append([]domain.EmailRecipient(nil), write.Recipients...)

	mailbox.StorageUsed += email.Size
	return nil
}

func (s *Store) GetEmail(ctx context.Context, mailboxID, emailID string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.emails[emailID]
	if !ok || email.MailboxID != mailboxID {
		return nil, storage.ErrEmailNotFound
	}
	copied := *email
	if sender, ok := s.senders[emailID]; ok {
		senderCopy := *sender
		copied.Sender = &senderCopy
	}
	copied.Recipients = append([]domain.EmailRecipient(nil), s.recipients[emailID]...)
	copied.Attachments = append([]domain.EmailAttachment(nil), s.attachments[emailID]...)
	return &copied, nil
}

func (s *Store) ListEmails(ctx context.Context, mailboxID string, category domain.EmailCategory, limit, offset int) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var emails []domain.Email
	for _, email := range s.emails {
		if email.MailboxID != mailboxID {
			continue
		}
		if category != "" && email.Category != category {
			continue
		}
		emails = append(emails, *email)
	}
	sort.Slice(emails, func(i, j int) bool {
		return emails[i].CreatedAt.After(emails[j].CreatedAt)
	})
	if offset >= len(emails) {
		return nil, nil
	}
	emails = emails[offset:]
	if limit > 0 && limit < len(emails) {
		emails = emails[:limit]
	}
	return emails, nil
}

func (s *Store) MarkEmailRead(ctx context.Context, mailboxID, emailID string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.emails[emailID]
	if !ok || email.MailboxID != mailboxID {
		return storage.ErrEmailNotFound
	}
	email.IsRead = read
	return nil
}

func (s *Store) CountEmails(ctx context.Context, mailboxID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total, unread int64
	for _, email := range s.emails {
		if email.MailboxID != mailboxID {
			continue
		}
		total++
		if !email.IsRead {
			unread++
		}
	}
	return total, unread, nil
}

func (s *Store) CountEmailsByCategory(ctx context.Context, mailboxID string) ([]storage.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byCategory := make(map[domain.EmailCategory]*storage.CategoryCount)
	for _, email := range s.emails {
		if email.MailboxID != mailboxID {
			continue
		}
		count, ok := byCategory[email.Category]
		if !ok {
			count = &storage.CategoryCount{Category: email.Category}
			byCategory[email.Category] = count
		}
		count.Total++
		if !email.IsRead {
			count.Unread++
		}
	}
	counts := make([]storage.CategoryCount, 0, len(byCategory))
	for _, count := range byCategory {
		counts = append(counts, *count)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Category < counts[j].Category })
	return counts, nil
}

func (s *Store) SaveAttachment(ctx context.Context, attachment *domain.EmailAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[attachment.EmailID] = append(s.attachments[attachment.EmailID], *attachment)
	return nil
}

func (s *Store) ListAttachments(ctx context.Context, emailID string) ([]domain.EmailAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EmailAttachment(nil), s.attachments[emailID]...), nil
}

// ========== Notification Repository ==========

// SaveNotification 保存推送订阅（按端点幂等）。
// 端点已存在时覆盖密钥材料与归属用户，保留原行的标识符与创建时间。
func (s *Store) SaveNotification(ctx context.Context, sub *domain.UserNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sub
	if existing, ok := s.notifications[sub.Endpoint]; ok {
		copied.ID = existing.ID
		copied.CreatedAt = existing.CreatedAt
	}
	s.notifications[sub.Endpoint] = &copied
	return nil
}

func (s *Store) ListNotificationsForMailbox(ctx context.Context, mailboxID string) ([]domain.UserNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userIDs := make(map[string]bool)
	for _, l := range s.mailboxUsers {
		if l.MailboxID == mailboxID {
			userIDs[l.UserID] = true
		}
	}
	var subs []domain.UserNotification
	for _, sub := range s.notifications {
		if userIDs[sub.UserID] {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}

func (s *Store) DeleteNotificationByEndpoint(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[endpoint]; !ok {
		return storage.ErrSubscriptionNotFound
	}
	delete(s.notifications, endpoint)
	return nil
}

func (s *Store) ListNotificationsByUserID(ctx context.Context, userID string) ([]domain.UserNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []domain.UserNotification
	for _, sub := range s.notifications {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}
