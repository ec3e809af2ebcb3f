package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes objects under a directory served at baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if needed.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory.
func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStorage) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	return s.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(key), "/"), nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
