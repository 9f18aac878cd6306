package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webmail/backend/internal/blob"
)

// Store 文件系统对象存储实现，用于开发与测试。
// 存储键按 "/" 拆分为目录层级；内容类型记录在同级 sidecar 文件中。
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Put 写入对象
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	// 先写临时文件再重命名，避免读到半写状态
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize object: %w", err)
	}

	if contentType != "" {
		if err := os.WriteFile(path+".content-type", []byte(contentType), 0644); err != nil {
			return fmt.Errorf("failed to write content type: %w", err)
		}
	}
	return nil
}

// Get 读取对象
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", blob.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to read object: %w", err)
	}

	contentType := ""
	if ct, err := os.ReadFile(path + ".content-type"); err == nil {
		contentType = string(ct)
	}
	return data, contentType, nil
}

// resolve 把存储键映射到基目录下的文件路径，拒绝越界路径。
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}
