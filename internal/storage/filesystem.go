package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem stores artifacts as files under a base directory. Keys are
// relative paths and are sanitized so they cannot escape the base directory.
type FileSystem struct {
	baseDir string
}

func NewFileSystem(baseDir string) *FileSystem {
	return &FileSystem{baseDir: baseDir}
}

func (fs *FileSystem) sanitizeKey(key string) (string, error) {
	cleaned := filepath.Clean(key)

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid key %q: contains parent directory reference", key)
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid key %q: absolute paths not allowed", key)
	}

	fullPath := filepath.Join(fs.baseDir, cleaned)
	if !strings.HasPrefix(fullPath, fs.baseDir+string(filepath.Separator)) && fullPath != fs.baseDir {
		return "", fmt.Errorf("invalid key %q: outside base directory", key)
	}

	return fullPath, nil
}

func (fs *FileSystem) Save(ctx context.Context, key string, data []byte) error {
	fullPath, err := fs.sanitizeKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (fs *FileSystem) Load(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := fs.sanitizeKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (fs *FileSystem) Exists(ctx context.Context, key string) bool {
	fullPath, err := fs.sanitizeKey(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

func (fs *FileSystem) Delete(ctx context.Context, key string) error {
	fullPath, err := fs.sanitizeKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
