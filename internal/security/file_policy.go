package security

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafeFileType 文件类型在禁止列表中
	ErrUnsafeFileType = errors.New("unsafe file type")
	// ErrFileTooLarge 文件超出大小上限
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultMaxFileSize 默认文件大小上限（50 MiB）
const DefaultMaxFileSize = 50 * 1024 * 1024

// DefaultBlockedExtensions 默认的危险扩展名表
var DefaultBlockedExtensions = []string{
	".exe", ".bat", ".cmd", ".sh", ".bin", ".app", ".jar",
	".msi", ".dmg", ".pkg", ".deb", ".rpm", ".scr", ".com",
}

// FileValidator 投递文件安全检查器。
//
// 采用扩展名黑名单加大小上限的策略：未知类型放行，
// 已知可执行类型与超大文件拒绝。
type FileValidator struct {
	blockedExtensions map[string]bool
	maxFileSize       int64
}

// NewFileValidator 创建文件安全检查器
//
// blockedExtensions 为空时使用默认黑名单；maxFileSize 非正时使用默认上限。
func NewFileValidator(blockedExtensions []string, maxFileSize int64) *FileValidator {
	if len(blockedExtensions) == 0 {
		blockedExtensions = DefaultBlockedExtensions
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	blocked := make(map[string]bool, len(blockedExtensions))
	for _, ext := range blockedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		blocked[ext] = true
	}

	return &FileValidator{
		blockedExtensions: blocked,
		maxFileSize:       maxFileSize,
	}
}

// MaxFileSize 当前生效的大小上限
func (v *FileValidator) MaxFileSize() int64 {
	return v.maxFileSize
}

// Check 按声明的文件名与大小检查文件。
//
// 检查顺序：扩展名黑名单在前，大小上限在后。
func (v *FileValidator) Check(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if v.blockedExtensions[ext] {
		return ErrUnsafeFileType
	}
	if size > v.maxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// CheckContent 对已读入的载荷做检查，包括可执行文件魔数。
func (v *FileValidator) CheckContent(filename string, content []byte) error {
	if err := v.Check(filename, int64(len(content))); err != nil {
		return err
	}
	if isExecutable(content) {
		return ErrUnsafeFileType
	}
	return nil
}

// executableSignatures 常见可执行文件魔数
var executableSignatures = [][]byte{
	{0x4D, 0x5A},             // PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O (reverse)
}

func isExecutable(content []byte) bool {
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(content, sig) {
			return true
		}
	}
	return false
}
