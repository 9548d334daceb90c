package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	TempDir   string
}

// MinIOStore keeps blobs as objects in a MinIO bucket
type MinIOStore struct {
	client  *minio.Client
	bucket  string
	tempDir string
	logger  *slog.Logger
}

// NewMinIOStore connects to MinIO and ensures the bucket exists
func NewMinIOStore(ctx context.Context, config *MinIOConfig, logger *slog.Logger) (*MinIOStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Created MinIO bucket",
			slog.String("bucket", config.Bucket),
		)
	}

	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	logger.Info("MinIO blob store initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &MinIOStore{
		client:  client,
		bucket:  config.Bucket,
		tempDir: tempDir,
		logger:  logger,
	}, nil
}

// Upload stores the file at srcPath as an object under key
func (s *MinIOStore) Upload(ctx context.Context, key string, srcPath string, contentType string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	s.logger.Debug("Object uploaded to MinIO",
		slog.String("key", key),
		slog.Int64("size", stat.Size()),
	)

	return nil
}

// Stage downloads the object to a temporary file the caller must remove
func (s *MinIOStore) Stage(ctx context.Context, key string) (string, bool, error) {
	dest := filepath.Join(s.tempDir, uuid.New().String()+path.Ext(key))

	if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return "", false, fmt.Errorf("failed to download object %s: %w", key, err)
	}

	return dest, true, nil
}

// Open streams the object's bytes
func (s *MinIOStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return obj, nil
}

// Remove deletes the object
func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}

	return nil
}
