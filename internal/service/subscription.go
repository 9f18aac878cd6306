package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"webmail/backend/internal/domain"
	"webmail/backend/internal/storage"
)

var (
	// ErrInvalidSubscription 订阅缺少端点或密钥材料
	ErrInvalidSubscription = errors.New("invalid subscription")
	// ErrNotSubscriptionOwner 订阅不属于当前用户
	ErrNotSubscriptionOwner = errors.New("not subscription owner")
)

// SubscriptionService 管理用户的 Web Push 订阅。
type SubscriptionService struct {
	store storage.NotificationRepository
}

// NewSubscriptionService 创建订阅管理服务。
func NewSubscriptionService(store storage.NotificationRepository) *SubscriptionService {
	return &SubscriptionService{store: store}
}

// RegisterInput 注册订阅的输入。
type RegisterInput struct {
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	ExpiresAt *time.Time
}

// Register 注册（或按端点覆盖）一个推送订阅。
func (s *SubscriptionService) Register(ctx context.Context, input RegisterInput) (*domain.UserNotification, error) {
	sub := &domain.UserNotification{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Endpoint:  input.Endpoint,
		P256dh:    input.P256dh,
		Auth:      input.Auth,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: input.ExpiresAt,
	}
	if !sub.HasKeys() {
		return nil, ErrInvalidSubscription
	}
	if err := s.store.SaveNotification(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Remove 按端点删除当前用户的订阅。
func (s *SubscriptionService) Remove(ctx context.Context, userID, endpoint string) error {
	subs, err := s.store.ListNotificationsByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Endpoint == endpoint {
			return s.store.DeleteNotificationByEndpoint(ctx, endpoint)
		}
	}
	return ErrNotSubscriptionOwner
}

// List 列出用户的全部订阅。
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]domain.UserNotification, error) {
	return s.store.ListNotificationsByUserID(ctx, userID)
}
