package filesystem

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"anondrop/backend/internal/domain"
)

var (
	// ErrBlobNotFound 文件载荷未找到
	ErrBlobNotFound = errors.New("blob not found")
)

// Store 文件系统 blob 存储。
//
// 投递的文件载荷按 uuid 键落盘，目录按键前两位分片；
// 数据库只保存 FileRef 引用。
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("blob store base path is empty")
	}
	basePath = filepath.Clean(basePath)

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: basePath}, nil
}

// blobMeta 随载荷落盘的元数据
type blobMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// SaveBlob 写入文件载荷，返回新分配的 FileRef。
func (s *Store) SaveBlob(name, mimeType string, content []byte) (*domain.FileRef, error) {
	id := uuid.New().String()

	dir := s.blobDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".bin"), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	meta := blobMeta{
		ID:        id,
		Name:      name,
		Size:      int64(len(content)),
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write blob metadata: %w", err)
	}

	return &domain.FileRef{
		ID:       id,
		Name:     name,
		Size:     meta.Size,
		MimeType: mimeType,
	}, nil
}

// GetBlob 读取文件载荷。
func (s *Store) GetBlob(id string) ([]byte, error) {
	if err := validateBlobID(id); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Join(s.blobDir(id), id+".bin"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// GetBlobRef 读取载荷元数据，不加载内容。
func (s *Store) GetBlobRef(id string) (*domain.FileRef, error) {
	if err := validateBlobID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.blobDir(id), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob metadata: %w", err)
	}

	var meta blobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &domain.FileRef{
		ID:       meta.ID,
		Name:     meta.Name,
		Size:     meta.Size,
		MimeType: meta.MimeType,
	}, nil
}

// DeleteBlob 删除文件载荷，不存在时视为成功。
func (s *Store) DeleteBlob(id string) error {
	if err := validateBlobID(id); err != nil {
		return err
	}

	dir := s.blobDir(id)
	for _, name := range []string{id + ".bin", id + ".json"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete blob: %w", err)
		}
	}
	return nil
}

// blobDir 按键前两位分片，避免单目录条目过多
func (s *Store) blobDir(id string) string {
	return filepath.Join(s.basePath, id[:2])
}

// validateBlobID 只接受 uuid 形态的键，防止路径穿越
func validateBlobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrBlobNotFound
	}
	return nil
}
