package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/mailparse"
	"webmail/backend/internal/monitoring"
	"webmail/backend/internal/push"
	"webmail/backend/internal/storage/memory"
)

// fakeBlobStore 记录上传对象的内存对象存储
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.objects[key]; ok {
		return data, f.types[key], nil
	}
	return nil, "", assert.AnError
}

// fakePushSender 按端点返回预设结果的推送器
type fakePushSender struct {
	mu      sync.Mutex
	sent    []string
	results map[string]error // 端点 -> 返回错误
}

func newFakePushSender() *fakePushSender {
	return &fakePushSender{results: make(map[string]error)}
}

func (f *fakePushSender) Send(ctx context.Context, sub push.Subscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sub.Endpoint)
	return f.results[sub.Endpoint]
}

func (f *fakePushSender) sentTo(endpoint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.sent {
		if e == endpoint {
			return true
		}
	}
	return false
}

type ingestFixture struct {
	store  *memory.Store
	blobs  *fakeBlobStore
	sender *fakePushSender
	svc    *IngestService
}

// newIngestFixture 搭好一个共享域名 + 别名 + 邮箱的测试环境。
// workers 传 nil，副作用同步执行，便于断言。
func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMailbox(ctx, &domain.Mailbox{
		ID: "mb-1", Plan: domain.PlanFree,
	}))
	require.NoError(t, store.SaveDefaultDomain(ctx, &domain.DefaultDomain{
		ID: "dd-1", Domain: "shared.example", AuthKey: "secret",
	}))
	require.NoError(t, store.SaveAlias(ctx, &domain.MailboxAlias{
		ID: "al-1", MailboxID: "mb-1", Alias: "me@shared.example",
	}))
	require.NoError(t, store.SaveCustomDomain(ctx, &domain.MailboxCustomDomain{
		ID: "cd-1", MailboxID: "mb-1", Domain: "custom.example", AuthKey: "secret2",
	}))

	blobs := newFakeBlobStore()
	sender := newFakePushSender()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	svc := NewIngestService(store, blobs, sender, nil, metrics, nil)

	return &ingestFixture{store: store, blobs: blobs, sender: sender, svc: svc}
}

const testRawEmail = "From: Alice <alice@example.com>\r\n" +
	"To: me@shared.example\r\n" +
	"Cc: copy@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hi there!\r\n"

func validInput() IngestInput {
	return IngestInput{
		Zone:     "shared.example",
		AuthKey:  "secret",
		RawEmail: testRawEmail,
		From:     "alice@example.com",
		To:       "me@shared.example",
	}
}

func TestIngest_MissingFields(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*IngestInput){
		"no zone":  func(in *IngestInput) { in.Zone = "" },
		"no auth":  func(in *IngestInput) { in.AuthKey = "" },
		"no email": func(in *IngestInput) { in.RawEmail = "" },
		"no from":  func(in *IngestInput) { in.From = "" },
		"no to":    func(in *IngestInput) { in.To = "" },
	} {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := f.svc.Ingest(ctx, in)
			assert.ErrorIs(t, err, ErrMissingFields)
		})
	}
}

func TestIngest_Routing(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	t.Run("共享域名经别名解析", func(t *testing.T) {
		result, err := f.svc.Ingest(ctx, validInput())
		require.NoError(t, err)
		assert.Equal(t, "mb-1", result.MailboxID)
		assert.NotEmpty(t, result.EmailID)
	})

	t.Run("共享域名未知别名拒绝", func(t *testing.T) {
		in := validInput()
		in.To = "unknown@shared.example"
		_, err := f.svc.Ingest(ctx, in)
		assert.ErrorIs(t, err, ErrMailboxNotResolved)
	})

	t.Run("自定义域名直接绑定邮箱", func(t *testing.T) {
		in := validInput()
		in.Zone = "custom.example"
		in.AuthKey = "secret2"
		in.To = "anything@custom.example" // 别名表不参与
		result, err := f.svc.Ingest(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "mb-1", result.MailboxID)
	})

	t.Run("未知域名拒绝", func(t *testing.T) {
		in := validInput()
		in.Zone = "nobody.example"
		_, err := f.svc.Ingest(ctx, in)
		assert.ErrorIs(t, err, ErrMailboxNotResolved)
	})

	t.Run("凭证错误拒绝", func(t *testing.T) {
		in := validInput()
		in.AuthKey = "wrong"
		_, err := f.svc.Ingest(ctx, in)
		assert.ErrorIs(t, err, ErrMailboxNotResolved)
	})
}

func TestIngest_QuotaBoundary(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	limit := domain.PlanFree.StorageLimit()

	t.Run("用量等于上限拒绝", func(t *testing.T) {
		require.NoError(t, f.store.SaveMailbox(ctx, &domain.Mailbox{
			ID: "mb-1", Plan: domain.PlanFree, StorageUsed: limit,
		}))
		_, err := f.svc.Ingest(ctx, validInput())
		assert.ErrorIs(t, err, ErrOverQuota)
	})

	t.Run("用量为上限减一接受", func(t *testing.T) {
		require.NoError(t, f.store.SaveMailbox(ctx, &domain.Mailbox{
			ID: "mb-1", Plan: domain.PlanFree, StorageUsed: limit - 1,
		}))
		_, err := f.svc.Ingest(ctx, validInput())
		assert.NoError(t, err)
	})
}

func TestIngest_PersistedEffects(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, validInput())
	require.NoError(t, err)

	// 存储计数恰好增加原始报文字节数
	mailbox, err := f.store.GetMailbox(ctx, "mb-1")
	require.NoError(t, err)
	assert.Equal(t, int64(len(testRawEmail)), mailbox.StorageUsed)

	email, err := f.store.GetEmail(ctx, "mb-1", result.EmailID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", email.Subject)
	assert.Equal(t, "Hi there!\r\n", email.Body)
	assert.Equal(t, "s3", email.Raw)
	assert.Equal(t, int64(len(testRawEmail)), email.Size)

	// 恰好一个发件人，To/Cc 各一条收件人记录
	require.NotNil(t, email.Sender)
	assert.Equal(t, "alice@example.com", email.Sender.Address)
	assert.Equal(t, "Alice", email.Sender.Name)
	require.Len(t, email.Recipients, 2)
	assert.False(t, email.Recipients[0].CC)
	assert.Equal(t, "me@shared.example", email.Recipients[0].Address)
	assert.True(t, email.Recipients[1].CC)
	assert.Equal(t, "copy@example.com", email.Recipients[1].Address)

	// 原始报文按约定键上传
	data, contentType, err := f.blobs.Get(ctx, "mb-1/"+result.EmailID+"/email.eml")
	require.NoError(t, err)
	assert.Equal(t, testRawEmail, string(data))
	assert.Equal(t, "message/rfc822", contentType)
}

func TestIngest_BodyFallbackToHTML(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	raw := "From: alice@example.com\r\n" +
		"To: me@shared.example\r\n" +
		"Subject: html only\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>rich</p>"
	in := validInput()
	in.RawEmail = raw

	result, err := f.svc.Ingest(ctx, in)
	require.NoError(t, err)

	email, err := f.store.GetEmail(ctx, "mb-1", result.EmailID)
	require.NoError(t, err)
	assert.Equal(t, "<p>rich</p>", email.Body)
	assert.Equal(t, "<p>rich</p>", email.HTML)
	assert.Equal(t, "<p>rich</p>", email.Snippet)
}

func TestIngest_AttachmentWithoutNameOrType(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	raw := "From: alice@example.com\r\n" +
		"To: me@shared.example\r\n" +
		"Subject: att\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=xx\r\n" +
		"\r\n" +
		"--xx\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"body\r\n" +
		"--xx\r\n" +
		"Content-Disposition: attachment\r\n\r\n" +
		"opaque-bytes\r\n" +
		"--xx--\r\n"
	in := validInput()
	in.RawEmail = raw

	result, err := f.svc.Ingest(ctx, in)
	require.NoError(t, err)

	attachments, err := f.store.ListAttachments(ctx, result.EmailID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)

	// 无文件名也无 MIME 类型时，文件名用新生成的标识符
	_, err = uuid.Parse(attachments[0].Title)
	assert.NoError(t, err, "fallback filename should be a generated id, got %q", attachments[0].Title)

	// 附件内容按 (邮箱, 邮件, 附件) 唯一键上传
	key := "mb-1/" + result.EmailID + "/" + attachments[0].ID + "/" + attachments[0].Filename
	data, _, err := f.blobs.Get(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opaque-bytes")
}

func TestIngest_BlobFailureDoesNotFailRequest(t *testing.T) {
	f := newIngestFixture(t)
	f.blobs.fail = true
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, validInput())
	require.NoError(t, err)

	// 落库行保留，消息依然可见
	_, err = f.store.GetEmail(ctx, "mb-1", result.EmailID)
	assert.NoError(t, err)
}

func TestIngest_NotificationFanOut(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveMailboxForUser(ctx, &domain.MailboxForUser{MailboxID: "mb-1", UserID: "u-1"}))
	require.NoError(t, f.store.SaveMailboxForUser(ctx, &domain.MailboxForUser{MailboxID: "mb-1", UserID: "u-2"}))
	require.NoError(t, f.store.SaveMailboxForUser(ctx, &domain.MailboxForUser{MailboxID: "mb-1", UserID: "u-3"}))

	// u-1 正常、u-2 的订阅已失效、u-3 缺少密钥材料
	require.NoError(t, f.store.SaveNotification(ctx, &domain.UserNotification{
		ID: "n-1", UserID: "u-1", Endpoint: "https://push/ok", P256dh: "p", Auth: "a",
	}))
	require.NoError(t, f.store.SaveNotification(ctx, &domain.UserNotification{
		ID: "n-2", UserID: "u-2", Endpoint: "https://push/gone", P256dh: "p", Auth: "a",
	}))
	require.NoError(t, f.store.SaveNotification(ctx, &domain.UserNotification{
		ID: "n-3", UserID: "u-3", Endpoint: "https://push/nokeys",
	}))
	f.sender.results["https://push/gone"] = push.ErrSubscriptionGone

	_, err := f.svc.Ingest(ctx, validInput())
	require.NoError(t, err)

	assert.True(t, f.sender.sentTo("https://push/ok"))
	assert.True(t, f.sender.sentTo("https://push/gone"))
	assert.False(t, f.sender.sentTo("https://push/nokeys"), "缺少密钥的订阅不应投递")

	// 永久失效的订阅被删除，正常订阅保留
	subs, err := f.store.ListNotificationsForMailbox(ctx, "mb-1")
	require.NoError(t, err)
	endpoints := make([]string, 0, len(subs))
	for _, s := range subs {
		endpoints = append(endpoints, s.Endpoint)
	}
	assert.NotContains(t, endpoints, "https://push/gone")
	assert.Contains(t, endpoints, "https://push/ok")
}

func TestIngest_TransientPushFailureRetainsSubscription(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveMailboxForUser(ctx, &domain.MailboxForUser{MailboxID: "mb-1", UserID: "u-1"}))
	require.NoError(t, f.store.SaveNotification(ctx, &domain.UserNotification{
		ID: "n-1", UserID: "u-1", Endpoint: "https://push/flaky", P256dh: "p", Auth: "a",
	}))
	f.sender.results["https://push/flaky"] = assert.AnError

	_, err := f.svc.Ingest(ctx, validInput())
	require.NoError(t, err)

	subs, err := f.store.ListNotificationsForMailbox(ctx, "mb-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push/flaky", subs[0].Endpoint)
}

func TestTruncate(t *testing.T) {
	t.Run("不足上限不加省略号", func(t *testing.T) {
		assert.Equal(t, "short", truncate("short", 200))
	})
	t.Run("恰好等于上限不加省略号", func(t *testing.T) {
		exact := strings.Repeat("a", 200)
		assert.Equal(t, exact, truncate(exact, 200))
	})
	t.Run("超出上限截断并追加省略号", func(t *testing.T) {
		long := strings.Repeat("a", 201)
		got := truncate(long, 200)
		assert.Equal(t, strings.Repeat("a", 200)+"…", got)
		assert.Len(t, []rune(got), 201)
	})
	t.Run("按字符而非字节截断", func(t *testing.T) {
		long := strings.Repeat("你", 250)
		got := truncate(long, 200)
		assert.Equal(t, strings.Repeat("你", 200)+"…", got)
	})
}

func TestCanonicalBody_AttachmentFallback(t *testing.T) {
	// 无文本也无 HTML 时，正文兜底为附件内容以换行拼接
	parsed := &mailparse.ParsedEmail{
		Attachments: []*mailparse.Attachment{
			{Content: []byte("part one")},
			{Content: []byte("part two")},
		},
	}
	assert.Equal(t, "part one\npart two", canonicalBody(parsed))
}
