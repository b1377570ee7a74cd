package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-service/internal/config"
)

func TestLocalStoreWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	url, err := store.Store(context.Background(), []byte("hello"), "Notes.TXT", "text/plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".txt"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreHonorsCancellation(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Store(ctx, []byte("x"), "a.png", "image/png")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".png", safeExt("photo.PNG"))
	assert.Equal(t, "", safeExt("archive"))
	assert.Equal(t, "", safeExt("evil.p/h"))
	assert.Equal(t, "", safeExt("x.averyveryverylongext"))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.BlobConfig{Provider: "s3"})
	require.Error(t, err)
}
