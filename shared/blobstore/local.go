package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs as plain files under a single root directory
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// NewLocalStore creates the root directory if needed and returns the store
func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	logger.Info("Local blob store initialized",
		slog.String("root", abs),
	)

	return &LocalStore{root: abs, logger: logger}, nil
}

// ResolvePath maps a storage key to an absolute path under the store root.
// Keys that are absolute or escape the root are rejected.
func (s *LocalStore) ResolvePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage key is empty")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("storage key %q must be relative", key)
	}

	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes the store root", key)
	}

	return filepath.Join(s.root, clean), nil
}

// Upload copies the file at srcPath under key
func (s *LocalStore) Upload(ctx context.Context, key string, srcPath string, contentType string) error {
	dst, err := s.ResolvePath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write blob: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close blob file: %w", err)
	}

	s.logger.Debug("Blob stored",
		slog.String("key", key),
	)

	return nil
}

// Stage returns the blob's path inside the root; no copy is made
func (s *LocalStore) Stage(ctx context.Context, key string) (string, bool, error) {
	path, err := s.ResolvePath(key)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(path); err != nil {
		return "", false, fmt.Errorf("blob %s not readable: %w", key, err)
	}

	return path, false, nil
}

// Open opens the blob for reading
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.ResolvePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}

	return f, nil
}

// Remove deletes the blob file
func (s *LocalStore) Remove(ctx context.Context, key string) error {
	path, err := s.ResolvePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove blob %s: %w", key, err)
	}

	return nil
}
