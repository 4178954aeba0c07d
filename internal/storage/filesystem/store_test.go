package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	t.Run("写入并读取载荷", func(t *testing.T) {
		content := []byte("hello drop box")
		ref, err := store.SaveBlob("note.txt", "text/plain", content)
		require.NoError(t, err)
		assert.NotEmpty(t, ref.ID)
		assert.Equal(t, int64(len(content)), ref.Size)

		got, err := store.GetBlob(ref.ID)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("元数据独立可读", func(t *testing.T) {
		ref, err := store.SaveBlob("photo.png", "image/png", []byte{0x89, 0x50})
		require.NoError(t, err)

		meta, err := store.GetBlobRef(ref.ID)
		require.NoError(t, err)
		assert.Equal(t, "photo.png", meta.Name)
		assert.Equal(t, "image/png", meta.MimeType)
	})

	t.Run("删除后不可读", func(t *testing.T) {
		ref, err := store.SaveBlob("temp.bin", "application/octet-stream", []byte{1, 2, 3})
		require.NoError(t, err)

		require.NoError(t, store.DeleteBlob(ref.ID))
		_, err = store.GetBlob(ref.ID)
		assert.ErrorIs(t, err, ErrBlobNotFound)

		// 删除不存在的载荷是幂等操作
		assert.NoError(t, store.DeleteBlob(ref.ID))
	})

	t.Run("非uuid键被拒绝", func(t *testing.T) {
		_, err := store.GetBlob("../../etc/passwd")
		assert.ErrorIs(t, err, ErrBlobNotFound)
	})
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore("   ")
	assert.Error(t, err)
}
