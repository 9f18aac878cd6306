package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webmail/backend/internal/blob"
	"webmail/backend/internal/domain"
	"webmail/backend/internal/mailparse"
	"webmail/backend/internal/monitoring"
	"webmail/backend/internal/pool"
	"webmail/backend/internal/push"
	"webmail/backend/internal/storage"
)

var (
	// ErrMissingFields 请求缺少必填字段
	ErrMissingFields = errors.New("missing required fields")
	// ErrMalformedEmail 原始报文无法解析
	ErrMalformedEmail = errors.New("malformed email")
	// ErrMailboxNotResolved 无法把收件地址路由到任何邮箱
	ErrMailboxNotResolved = errors.New("mailbox not found")
	// ErrOverQuota 目标邮箱已超出套餐存储上限
	ErrOverQuota = errors.New("mailbox over storage limit")
)

// 正文摘要与通知正文的截断长度（字符数）
const snippetLength = 200

// 附件并发上传上限，各附件目标键互不相交
const attachmentUploadConcurrency = 4

// IngestService 入站邮件投递管道。
//
// 流程：域名解析 -> 配额检查 -> 报文归一化 -> 事务落库 ->
// 对象存储上传 -> 推送通知分发。前四步失败中止整个请求；
// 后两步与响应路径解耦，失败只记录日志与指标。
type IngestService struct {
	store   storage.Store
	blobs   blob.Store
	sender  push.Sender
	workers *pool.WorkerPool
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewIngestService 创建入站投递服务。
// workers 为 nil 时副作用同步执行（测试用）。
func NewIngestService(store storage.Store, blobs blob.Store, sender push.Sender, workers *pool.WorkerPool, metrics *monitoring.Metrics, log *zap.Logger) *IngestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{
		store:   store,
		blobs:   blobs,
		sender:  sender,
		workers: workers,
		metrics: metrics,
		log:     log,
	}
}

// IngestInput 一次入站投递请求。
type IngestInput struct {
	Zone     string // 收件地址所属域名（路由层上报）
	AuthKey  string // 随请求出示的凭证
	RawEmail string // 原始 RFC 822 报文
	From     string // 信封发件地址
	To       string // 信封收件地址
}

// IngestResult 投递结果。
type IngestResult struct {
	EmailID   string
	MailboxID string
}

// Ingest 执行完整的入站投递管道。
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	start := time.Now()

	if input.Zone == "" || input.AuthKey == "" || input.RawEmail == "" || input.From == "" || input.To == "" {
		s.metrics.RecordRejection("missing_fields")
		return nil, ErrMissingFields
	}

	parsed, err := mailparse.Parse([]byte(input.RawEmail))
	if err != nil {
		s.metrics.RecordRejection("malformed")
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmail, err)
	}

	mailboxID, err := s.resolveMailbox(ctx, input.Zone, input.AuthKey, input.To)
	if err != nil {
		return nil, err
	}

	mailbox, err := s.store.GetMailbox(ctx, mailboxID)
	if err != nil {
		// 孤儿别名：路由表指向不存在的邮箱
		s.metrics.RecordRejection("routing")
		return nil, fmt.Errorf("%w: %v", ErrMailboxNotResolved, err)
	}

	if mailbox.OverQuota() {
		s.metrics.RecordRejection("quota")
		return nil, ErrOverQuota
	}

	emailID := uuid.NewString()
	write := buildEmailWrite(emailID, mailboxID, parsed)

	if err := s.store.CreateEmail(ctx, write); err != nil {
		s.metrics.RecordRejection("persistence")
		return nil, fmt.Errorf("persist email: %w", err)
	}

	s.metrics.EmailsIngested.Inc()
	s.metrics.EmailBytes.Observe(float64(parsed.RawSize))
	s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	s.log.Info("email ingested",
		zap.String("email_id", emailID),
		zap.String("mailbox_id", mailboxID),
		zap.Int64("size", parsed.RawSize),
		zap.Int("attachments", len(parsed.Attachments)),
	)

	// 副作用与响应路径解耦：请求只等待任务提交，不等待结果
	detached := context.WithoutCancel(ctx)
	raw := []byte(input.RawEmail)
	s.dispatch(func() { s.offloadBlobs(detached, mailboxID, emailID, raw, parsed.Attachments) })
	s.dispatch(func() {
		s.fanOutNotifications(detached, mailboxID, emailID, parsed.From.Address, parsed.Subject)
	})

	return &IngestResult{EmailID: emailID, MailboxID: mailboxID}, nil
}

// resolveMailbox 把 (zone, 凭证, 收件地址) 解析为目标邮箱。
//
// 共享域名命中后必须再经别名表；自定义域名直接绑定邮箱。
func (s *IngestService) resolveMailbox(ctx context.Context, zone, authKey, to string) (string, error) {
	_, err := s.store.GetDefaultDomain(ctx, zone, authKey)
	if err == nil {
		alias, err := s.store.GetAliasByAddress(ctx, to)
		if err != nil {
			if errors.Is(err, storage.ErrAliasNotFound) {
				s.metrics.RecordRejection("routing")
				return "", ErrMailboxNotResolved
			}
			return "", fmt.Errorf("lookup alias: %w", err)
		}
		return alias.MailboxID, nil
	}
	if !errors.Is(err, storage.ErrDomainNotFound) {
		return "", fmt.Errorf("lookup default domain: %w", err)
	}

	custom, err := s.store.GetCustomDomain(ctx, zone, authKey)
	if err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			s.metrics.RecordRejection("routing")
			return "", ErrMailboxNotResolved
		}
		return "", fmt.Errorf("lookup custom domain: %w", err)
	}
	return custom.MailboxID, nil
}

// buildEmailWrite 把解析结果归一化为待落库的行。
func buildEmailWrite(emailID, mailboxID string, parsed *mailparse.ParsedEmail) *storage.EmailWrite {
	body := canonicalBody(parsed)

	email := &domain.Email{
		ID:        emailID,
		MailboxID: mailboxID,
		Raw:       "s3",
		Subject:   parsed.Subject,
		Body:      body,
		HTML:      parsed.HTML,
		Snippet:   truncate(body, snippetLength),
		ReplyTo:   parsed.ReplyTo,
		Size:      parsed.RawSize,
		Category:  domain.CategoryInbox,
		CreatedAt: time.Now().UTC(),
	}

	recipients := make([]domain.EmailRecipient, 0, len(parsed.To)+len(parsed.Cc))
	for _, to := range parsed.To {
		recipients = append(recipients, domain.EmailRecipient{
			EmailID: emailID, Address: to.Address, Name: to.Name, CC: false,
		})
	}
	for _, cc := range parsed.Cc {
		recipients = append(recipients, domain.EmailRecipient{
			EmailID: emailID, Address: cc.Address, Name: cc.Name, CC: true,
		})
	}

	return &storage.EmailWrite{
		Email: email,
		Sender: &domain.EmailSender{
			EmailID: emailID,
			Address: parsed.From.Address,
			Name:    parsed.From.Name,
		},
		Recipients: recipients,
	}
}

// canonicalBody 选取规范正文：纯文本优先，其次 HTML，
// 最后兜底用所有附件内容以换行拼接。
func canonicalBody(parsed *mailparse.ParsedEmail) string {
	if parsed.Text != "" {
		return parsed.Text
	}
	if parsed.HTML != "" {
		return parsed.HTML
	}
	joined := ""
	for i, att := range parsed.Attachments {
		if i > 0 {
			joined += "\n"
		}
		joined += string(att.Content)
	}
	return joined
}

// truncate 截断到 length 个字符，仅在确实截断时追加省略号。
func truncate(text string, length int) string {
	runes := []rune(text)
	if len(runes) <= length {
		return text
	}
	return string(runes[:length]) + "…"
}

// offloadBlobs 把原始报文与附件内容上传到对象存储。
//
// 事务已提交，本阶段任何失败都只记录，不回滚已落库的行，
// 也不影响其余附件的处理。
func (s *IngestService) offloadBlobs(ctx context.Context, mailboxID, emailID string, raw []byte, attachments []*mailparse.Attachment) {
	if err := s.blobs.Put(ctx, blob.EmailKey(mailboxID, emailID), raw, blob.RawEmailContentType); err != nil {
		s.metrics.RecordBlobUpload(false)
		s.log.Error("failed to upload raw email",
			zap.String("email_id", emailID), zap.Error(err))
	} else {
		s.metrics.RecordBlobUpload(true)
	}

	type upload struct {
		key      string
		mimeType string
		content  []byte
	}
	uploads := make([]upload, 0, len(attachments))

	// 元数据先落库，独立于内容上传的成败
	for _, att := range attachments {
		name := att.Filename
		if name == "" {
			name = att.MimeType
		}
		if name == "" {
			name = uuid.NewString()
		}

		attID := uuid.NewString()
		meta := &domain.EmailAttachment{
			ID:       attID,
			EmailID:  emailID,
			Filename: blob.EncodeFilename(name),
			Title:    name,
			MimeType: att.MimeType,
			Size:     int64(len(att.Content)),
		}
		if err := s.store.SaveAttachment(ctx, meta); err != nil {
			s.log.Error("failed to save attachment metadata",
				zap.String("email_id", emailID), zap.String("filename", name), zap.Error(err))
			continue
		}
		s.metrics.AttachmentsSaved.Inc()

		uploads = append(uploads, upload{
			key:      blob.AttachmentKey(mailboxID, emailID, attID, name),
			mimeType: att.MimeType,
			content:  att.Content,
		})
	}

	// 各附件目标键互不相交，可以并发上传
	var g errgroup.Group
	g.SetLimit(attachmentUploadConcurrency)
	for _, u := range uploads {
		u := u
		g.Go(func() error {
			if err := s.blobs.Put(ctx, u.key, u.content, u.mimeType); err != nil {
				s.metrics.RecordBlobUpload(false)
				s.log.Error("failed to upload attachment",
					zap.String("email_id", emailID), zap.String("key", u.key), zap.Error(err))
				return nil
			}
			s.metrics.RecordBlobUpload(true)
			return nil
		})
	}
	_ = g.Wait()
}

// fanOutNotifications 向所有对邮箱有访问权的用户的订阅分发通知。
//
// 每个订阅独立投递，互不阻塞；推送服务报告订阅永久失效时
// 按端点删除该订阅，其余失败只记录，不重试。
func (s *IngestService) fanOutNotifications(ctx context.Context, mailboxID, emailID, fromAddress, subject string) {
	subs, err := s.store.ListNotificationsForMailbox(ctx, mailboxID)
	if err != nil {
		s.log.Error("failed to list push subscriptions",
			zap.String("mailbox_id", mailboxID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	p := push.Payload{
		Title: fromAddress,
		URL:   fmt.Sprintf("/mail/%s/%s", mailboxID, emailID),
	}
	if subject != "" {
		p.Body = truncate(subject, snippetLength)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		s.log.Error("failed to marshal push payload", zap.Error(err))
		return
	}

	var g errgroup.Group
	for _, sub := range subs {
		if !sub.HasKeys() {
			s.metrics.RecordPushDelivery("skipped")
			s.log.Error("subscription missing key material, skipping",
				zap.String("endpoint", sub.Endpoint), zap.String("user_id", sub.UserID))
			continue
		}

		sub := sub
		g.Go(func() error {
			err := s.sender.Send(ctx, push.Subscription{
				Endpoint:  sub.Endpoint,
				P256dh:    sub.P256dh,
				Auth:      sub.Auth,
				ExpiresAt: sub.ExpiresAt,
			}, payload)
			switch {
			case err == nil:
				s.metrics.RecordPushDelivery("ok")
			case errors.Is(err, push.ErrSubscriptionGone):
				s.metrics.RecordPushDelivery("gone")
				delErr := s.store.DeleteNotificationByEndpoint(ctx, sub.Endpoint)
				switch {
				case delErr == nil:
					s.log.Info("deleted gone subscription", zap.String("endpoint", sub.Endpoint))
				case errors.Is(delErr, storage.ErrSubscriptionNotFound):
					// 并发投递已经删过了
				default:
					s.log.Error("failed to delete gone subscription",
						zap.String("endpoint", sub.Endpoint), zap.Error(delErr))
				}
			default:
				s.metrics.RecordPushDelivery("error")
				s.log.Error("push delivery failed",
					zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// dispatch 把任务交给协程池；未配置协程池时同步执行。
func (s *IngestService) dispatch(task func()) {
	if s.workers == nil {
		task()
		return
	}
	s.workers.Submit(task)
}
