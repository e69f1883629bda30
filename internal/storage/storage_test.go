package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"dealhub/internal/db"
	"dealhub/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func stores(t *testing.T) map[string]storage.ImageStore {
	disk, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	return map[string]storage.ImageStore{
		"disk": disk,
		"blob": storage.NewBlobStore(gdb),
	}
}

func TestImageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ref, err := store.Store(ctx, 42, "photo.png", "image/png", pngBytes)
			require.NoError(t, err)
			assert.NotEmpty(t, ref)

			img, err := store.Resolve(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, pngBytes, img.Data)
			assert.Equal(t, "image/png", img.ContentType)

			require.NoError(t, store.Delete(ctx, ref))
			_, err = store.Resolve(ctx, ref)
			assert.ErrorIs(t, err, storage.ErrNotFound)

			// Deleting twice is harmless.
			assert.NoError(t, store.Delete(ctx, ref))
		})
	}
}

func TestImageStore_UnknownReference(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Resolve(ctx, "../../etc/passwd")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestDiskStore_FileNaming(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := store.Store(ctx, 7, "a.JPG", "image/jpeg", []byte("one"))
	require.NoError(t, err)
	second, err := store.Store(ctx, 7, "", "image/png", []byte("two"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^7-\d+\.jpg$`), first)
	assert.Regexp(t, regexp.MustCompile(`^7-\d+\.png$`), second)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(filepath.Join(dir, first))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
}

func TestIsImage(t *testing.T) {
	assert.True(t, storage.IsImage("image/png"))
	assert.True(t, storage.IsImage("image/jpeg; charset=binary"))
	assert.False(t, storage.IsImage("text/plain"))
	assert.False(t, storage.IsImage(""))
	assert.Equal(t, "image/png", storage.DetectContentType("", pngBytes))
}
