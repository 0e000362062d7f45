package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage stores keys as files below a base directory.
type FileStorage struct {
	baseDir string
}

func NewFileStorage(baseDir string) *FileStorage {
	return &FileStorage{baseDir: baseDir}
}

func (s *FileStorage) BaseDir() string {
	return s.baseDir
}

// Path maps a slash separated key to its location on disk.
func (s *FileStorage) Path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// Save creates missing parent directories and replaces any previous content.
func (s *FileStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}

	fullPath := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("error creating folder: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}
	return nil
}

func (s *FileStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path(key))
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("invalid storage key %q", key)
		}
	}
	return nil
}
