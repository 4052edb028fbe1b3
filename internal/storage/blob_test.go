package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/common"
)

func TestFileBlobStore_PutGet(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "drafts/media/abc.jpg"
	data := []byte("photo-bytes")

	require.NoError(t, store.Put(ctx, key, data))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.FileExists(t, filepath.Join(tmpDir, "drafts", "media", "abc.jpg"))
}

func TestFileBlobStore_GetNotFound(t *testing.T) {
	store, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), "nonexistent.jpg")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFileBlobStore_Exists(t *testing.T) {
	store, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ok, err := store.Exists(ctx, "abc.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "abc.jpg", []byte("x")))
	ok, err = store.Exists(ctx, "abc.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileBlobStore_Delete(t *testing.T) {
	store, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "abc.jpg", []byte("x")))
	require.NoError(t, store.Delete(ctx, "abc.jpg"))

	_, err = store.Get(ctx, "abc.jpg")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFileBlobStore_ConfinesPathTraversalToBasePath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{BasePath: dir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "../../etc/passwd", []byte("x")))

	_, err = store.Get(ctx, "../../etc/passwd")
	assert.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "__", "__", "etc", "passwd"))
}

func TestNewFileBlobStore_RequiresBasePath(t *testing.T) {
	_, err := NewFileBlobStore(common.NewSilentLogger(), &FileBlobConfig{})
	assert.Error(t, err)
}
