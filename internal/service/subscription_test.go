package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backend/internal/storage/memory"
)

func TestSubscriptionService_RegisterAndRemove(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriptionService(store)
	ctx := context.Background()

	sub, err := svc.Register(ctx, RegisterInput{
		UserID:   "u-1",
		Endpoint: "https://push/1",
		P256dh:   "p",
		Auth:     "a",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)

	subs, err := svc.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	// 同端点重复注册为覆盖：不产生第二条，且保留首次注册的标识符
	_, err = svc.Register(ctx, RegisterInput{
		UserID: "u-1", Endpoint: "https://push/1", P256dh: "p2", Auth: "a2",
	})
	require.NoError(t, err)
	subs, err = svc.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
	assert.Equal(t, "p2", subs[0].P256dh)

	require.NoError(t, svc.Remove(ctx, "u-1", "https://push/1"))
	subs, err = svc.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionService_Validation(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriptionService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{UserID: "u-1", Endpoint: "https://push/1"})
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	// 不能删除别人的订阅
	_, err = svc.Register(ctx, RegisterInput{
		UserID: "u-1", Endpoint: "https://push/1", P256dh: "p", Auth: "a",
	})
	require.NoError(t, err)
	err = svc.Remove(ctx, "u-2", "https://push/1")
	assert.ErrorIs(t, err, ErrNotSubscriptionOwner)
}
