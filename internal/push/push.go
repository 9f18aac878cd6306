package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone 表示推送服务报告订阅已永久失效（HTTP 410 语义），
// 调用方应删除该订阅且不再重试。
var ErrSubscriptionGone = errors.New("push subscription gone")

// Subscription 表示一次投递的目标订阅。
type Subscription struct {
	Endpoint  string
	P256dh    string
	Auth      string
	ExpiresAt *time.Time
}

// Payload 是推送给浏览器的通知内容。
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	URL   string `json:"url"`
}

// Sender 定义推送投递原语。
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// NopSender 丢弃所有通知，未配置 VAPID 密钥时使用。
type NopSender struct{}

// Send 直接返回成功。
func (NopSender) Send(ctx context.Context, sub Subscription, payload []byte) error {
	return nil
}

// WebPushSender 基于 Web Push 协议（VAPID）的 Sender 实现。
type WebPushSender struct {
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
	client          *http.Client
}

// NewWebPushSender 创建 Web Push 投递器。
// timeout 约束单次投递，慢速端点不会无限占用工作协程。
func NewWebPushSender(subscriber, vapidPublicKey, vapidPrivateKey string, timeout time.Duration) *WebPushSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebPushSender{
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		client:          &http.Client{Timeout: timeout},
	}
}

// Send 投递一条通知。
// 410/404 映射为 ErrSubscriptionGone，其余非 2xx 返回普通错误。
func (s *WebPushSender) Send(ctx context.Context, sub Subscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
