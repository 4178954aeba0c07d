package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileValidatorCheck(t *testing.T) {
	validator := NewFileValidator(nil, 1024)

	t.Run("常规文件放行", func(t *testing.T) {
		assert.NoError(t, validator.Check("photo.jpg", 512))
		assert.NoError(t, validator.Check("report.pdf", 1024))
		assert.NoError(t, validator.Check("noextension", 10))
	})

	t.Run("黑名单扩展名拒绝", func(t *testing.T) {
		for _, name := range []string{"virus.exe", "script.sh", "setup.MSI", "a.JAR"} {
			assert.ErrorIs(t, validator.Check(name, 1), ErrUnsafeFileType, "name=%q", name)
		}
	})

	t.Run("超出大小上限拒绝", func(t *testing.T) {
		assert.ErrorIs(t, validator.Check("big.png", 1025), ErrFileTooLarge)
	})

	t.Run("扩展名检查先于大小检查", func(t *testing.T) {
		err := validator.Check("huge.exe", 999999)
		assert.ErrorIs(t, err, ErrUnsafeFileType)
	})
}

func TestFileValidatorCustomList(t *testing.T) {
	validator := NewFileValidator([]string{"ps1", ".VBS"}, 0)

	assert.ErrorIs(t, validator.Check("run.ps1", 1), ErrUnsafeFileType)
	assert.ErrorIs(t, validator.Check("run.vbs", 1), ErrUnsafeFileType)
	// 自定义列表替换默认列表
	assert.NoError(t, validator.Check("tool.exe", 1))
	assert.Equal(t, int64(DefaultMaxFileSize), validator.MaxFileSize())
}

func TestCheckContentMagicBytes(t *testing.T) {
	validator := NewFileValidator(nil, 0)

	t.Run("ELF头被识别为可执行", func(t *testing.T) {
		elf := append([]byte{0x7F, 0x45, 0x4C, 0x46}, make([]byte, 32)...)
		assert.ErrorIs(t, validator.CheckContent("data.dat", elf), ErrUnsafeFileType)
	})

	t.Run("PE头被识别为可执行", func(t *testing.T) {
		pe := append([]byte{0x4D, 0x5A}, make([]byte, 32)...)
		assert.ErrorIs(t, validator.CheckContent("data.dat", pe), ErrUnsafeFileType)
	})

	t.Run("普通内容放行", func(t *testing.T) {
		assert.NoError(t, validator.CheckContent("note.txt", []byte("plain text")))
	})
}
