package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutGet(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "images/a.png", "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	assert.Equal(t, "memory://images/a.png", uri)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get("images/a.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(got))

	got[0] = 'X'
	again, _ := store.Get("images/a.png")
	assert.Equal(t, "png", string(again), "Get must return a copy")

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}
