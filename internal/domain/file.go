package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileCategory 投递文件的展示类别。
type FileCategory string

const (
	FileCategoryImage    FileCategory = "image"
	FileCategoryAudio    FileCategory = "audio"
	FileCategoryVideo    FileCategory = "video"
	FileCategoryDocument FileCategory = "document"
	FileCategoryText     FileCategory = "text"
	FileCategoryUnknown  FileCategory = "unknown"
)

// FileRef 指向已写入 blob 存储的文件载荷。
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// documentMimeTypes MIME 完整匹配的文档类型
var documentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/zip":              true,
	"application/x-rar-compressed": true,
	"application/x-7z-compressed":  true,
	"application/gzip":             true,
}

// 扩展名兜底表，MIME 缺失或不可识别时使用
var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".bmp": true, ".svg": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".m4a": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mkv": true, ".mov": true, ".webm": true,
	}
	textExtensions = map[string]bool{
		".txt": true, ".md": true, ".csv": true, ".log": true, ".json": true,
	}
	documentExtensions = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
		".ppt": true, ".pptx": true, ".zip": true, ".rar": true, ".7z": true,
	}
)

// CategorizeFile 根据 MIME 类型推断文件类别，MIME 不可用时按扩展名兜底。
func CategorizeFile(mimeType, fileName string) FileCategory {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return FileCategoryImage
	case strings.HasPrefix(mt, "audio/"):
		return FileCategoryAudio
	case strings.HasPrefix(mt, "video/"):
		return FileCategoryVideo
	case strings.HasPrefix(mt, "text/"):
		return FileCategoryText
	case documentMimeTypes[mt]:
		return FileCategoryDocument
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case imageExtensions[ext]:
		return FileCategoryImage
	case audioExtensions[ext]:
		return FileCategoryAudio
	case videoExtensions[ext]:
		return FileCategoryVideo
	case textExtensions[ext]:
		return FileCategoryText
	case documentExtensions[ext]:
		return FileCategoryDocument
	}

	return FileCategoryUnknown
}

// FormatFileSize 人类可读的文件大小。
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
