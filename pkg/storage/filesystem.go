package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage persists objects on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./brochures"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Put copies r into the file addressed by key.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*ObjectInfo, error) {
	path, key, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	written, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write object: %w", err)
	}
	if contentType == "" {
		contentType = contentTypeFor(key)
	}
	return &ObjectInfo{Key: key, Size: written, ContentType: contentType}, nil
}

// Get opens the object for reading.
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	path, key, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("open object: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	return file, &ObjectInfo{Key: key, Size: stat.Size(), ContentType: contentTypeFor(key), ModTime: stat.ModTime()}, nil
}

// Delete removes a stored object if present.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, _, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), cleaned, nil
}

var _ ObjectStore = (*LocalStorage)(nil)
