package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTokenID(t *testing.T) {
	t.Run("合法的令牌ID", func(t *testing.T) {
		assert.NoError(t, ValidateTokenID("abc12345"))
		assert.NoError(t, ValidateTokenID("00000000"))
		assert.NoError(t, ValidateTokenID("zzzzzzzz"))
	})

	t.Run("非法的令牌ID", func(t *testing.T) {
		cases := []string{
			"",
			"abc1234",    // 太短
			"abc123456",  // 太长
			"ABC12345",   // 大写
			"abc-1234",   // 非法字符
			"abc 1234",   // 空格
			"абв12345",   // 非 ASCII
		}
		for _, id := range cases {
			assert.ErrorIs(t, ValidateTokenID(id), ErrInvalidTokenID, "id=%q", id)
		}
	})
}

func TestValidatePin(t *testing.T) {
	t.Run("合法的PIN", func(t *testing.T) {
		for _, pin := range []string{"1234", "12345", "123456", "0000"} {
			assert.NoError(t, ValidatePin(pin), "pin=%q", pin)
		}
	})

	t.Run("非法的PIN", func(t *testing.T) {
		cases := []string{"", "123", "1234567", "12a4", "12 4", "١٢٣٤", "-123"}
		for _, pin := range cases {
			assert.ErrorIs(t, ValidatePin(pin), ErrInvalidPinFormat, "pin=%q", pin)
		}
	})
}

func TestValidateDepositContent(t *testing.T) {
	t.Run("纯文本投递", func(t *testing.T) {
		assert.NoError(t, ValidateDepositContent("hello", nil))
	})

	t.Run("纯文件投递", func(t *testing.T) {
		assert.NoError(t, ValidateDepositContent("", &FileRef{ID: "f1", Name: "a.png"}))
	})

	t.Run("文件加说明", func(t *testing.T) {
		assert.NoError(t, ValidateDepositContent("caption", &FileRef{ID: "f1"}))
	})

	t.Run("空内容被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDepositContent("", nil), ErrEmptyContent)
		assert.ErrorIs(t, ValidateDepositContent("   ", nil), ErrEmptyContent)
	})

	t.Run("超长文本被拒绝", func(t *testing.T) {
		long := make([]byte, MaxDepositTextLength+1)
		for i := range long {
			long[i] = 'x'
		}
		assert.ErrorIs(t, ValidateDepositContent(string(long), nil), ErrTextTooLong)
	})
}

func TestDropTokenState(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("激活状态", func(t *testing.T) {
		tok := &DropToken{ID: "abc12345", IsActive: true}
		assert.Equal(t, TokenStateActive, tok.State(now))
		assert.True(t, tok.IsUsable(now))
	})

	t.Run("停用状态", func(t *testing.T) {
		tok := &DropToken{ID: "abc12345", IsActive: false}
		assert.Equal(t, TokenStateDisabled, tok.State(now))
		assert.False(t, tok.IsUsable(now))
	})

	t.Run("过期优先于停用", func(t *testing.T) {
		tok := &DropToken{ID: "abc12345", IsActive: false, ExpiresAt: &past}
		assert.Equal(t, TokenStateExpired, tok.State(now))
	})

	t.Run("删除优先于一切", func(t *testing.T) {
		tok := &DropToken{ID: "abc12345", IsActive: true, ExpiresAt: &past, DeletedAt: &past}
		assert.Equal(t, TokenStateDeleted, tok.State(now))
		assert.False(t, tok.IsUsable(now))
	})

	t.Run("未到期仍可用", func(t *testing.T) {
		tok := &DropToken{ID: "abc12345", IsActive: true, ExpiresAt: &future}
		assert.True(t, tok.IsUsable(now))
	})

	t.Run("过期时刻即不可用", func(t *testing.T) {
		exact := now
		tok := &DropToken{ID: "abc12345", IsActive: true, ExpiresAt: &exact}
		assert.True(t, tok.IsExpired(now))
		assert.False(t, tok.IsUsable(now))
	})
}

func TestCategorizeFile(t *testing.T) {
	t.Run("按MIME类型分类", func(t *testing.T) {
		assert.Equal(t, FileCategoryImage, CategorizeFile("image/png", "a.bin"))
		assert.Equal(t, FileCategoryAudio, CategorizeFile("audio/mpeg", "a.bin"))
		assert.Equal(t, FileCategoryVideo, CategorizeFile("video/mp4", "a.bin"))
		assert.Equal(t, FileCategoryText, CategorizeFile("text/plain", "a.bin"))
		assert.Equal(t, FileCategoryDocument, CategorizeFile("application/pdf", "a.bin"))
	})

	t.Run("MIME缺失时按扩展名兜底", func(t *testing.T) {
		assert.Equal(t, FileCategoryImage, CategorizeFile("", "photo.JPG"))
		assert.Equal(t, FileCategoryAudio, CategorizeFile("", "song.flac"))
		assert.Equal(t, FileCategoryDocument, CategorizeFile("application/octet-stream", "report.docx"))
	})

	t.Run("无法识别归为unknown", func(t *testing.T) {
		assert.Equal(t, FileCategoryUnknown, CategorizeFile("", "data.xyz"))
		assert.Equal(t, FileCategoryUnknown, CategorizeFile("application/octet-stream", "blob"))
	})
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "1.5 MB", FormatFileSize(1536*1024))
	assert.Equal(t, "2.0 GB", FormatFileSize(2*1024*1024*1024))
}
