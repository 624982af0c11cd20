// Package storage provides FileStorage implementations for uploaded documents.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dataportal/internal/errors"
	"dataportal/ports"

	"github.com/google/uuid"
)

const defaultChunkSize = 1 << 20

// LocalFileStorage implements FileStorage on the local filesystem.
// Keys are file names relative to the base path.
type LocalFileStorage struct {
	basePath  string
	chunkSize int
}

// NewLocalFileStorage creates a local storage rooted at basePath
func NewLocalFileStorage(basePath string) *LocalFileStorage {
	return &LocalFileStorage{basePath: basePath, chunkSize: defaultChunkSize}
}

// uniqueName keeps the original base name for readability and appends a
// timestamp plus a short uuid so concurrent uploads never collide.
func uniqueName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, stem)
	return fmt.Sprintf("%s_%s_%s%s", stem, time.Now().Format("20060102_150405"), uuid.New().String()[:8], strings.ToLower(ext))
}

func (s *LocalFileStorage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) {
		return "", errors.InvalidInput(fmt.Sprintf("invalid storage key %q", key))
	}
	return filepath.Join(s.basePath, key), nil
}

// Store saves the content under a unique name and returns that name
func (s *LocalFileStorage) Store(ctx context.Context, r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	key := uniqueName(filename)
	filePath := filepath.Join(s.basePath, key)

	destFile, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	buf := make([]byte, s.chunkSize)
	if _, err := io.CopyBuffer(destFile, r, buf); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file contents: %w", err)
	}

	return key, nil
}

// GetReader returns a reader for the stored file
func (s *LocalFileStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, errors.NotFound("file " + key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file; a missing file is not an error
func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a file exists in storage
func (s *LocalFileStorage) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

var _ ports.FileStorage = (*LocalFileStorage)(nil)
