package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backend/internal/blob"
)

func TestStore_PutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := blob.EmailKey("mb-1", "em-1")
	require.NoError(t, store.Put(ctx, key, []byte("raw email"), blob.RawEmailContentType))

	data, contentType, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "raw email", string(data))
	assert.Equal(t, blob.RawEmailContentType, contentType)
}

func TestStore_GetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "mb-1/em-1/email.eml")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_RejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape", []byte("x"), "")
	assert.Error(t, err)
}

func TestAttachmentKey_Encoding(t *testing.T) {
	key := blob.AttachmentKey("mb", "em", "att", "my report final.pdf")
	assert.Equal(t, "mb/em/att/my%20report%20final.pdf", key)
}
