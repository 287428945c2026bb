// Package storage holds the object store for uploaded reel videos.
// Queued runs reference a reel by object key; the worker fetches it to a
// local file for frame extraction.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/config"
)

// ReelStore reads and writes reel videos in a MinIO bucket.
type ReelStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewReelStore creates the store and ensures its bucket exists.
func NewReelStore(ctx context.Context, cfg config.MinIOConfig, log *zap.Logger) (*ReelStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	log.Info("connected to MinIO",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
	)

	return &ReelStore{client: client, bucket: cfg.Bucket, logger: log}, nil
}

// Put uploads a reel and returns its object key.
func (s *ReelStore) Put(ctx context.Context, objectKey, localPath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return fmt.Errorf("failed to upload reel %s: %w", objectKey, err)
	}
	return nil
}

// Fetch downloads a reel to a temp file and returns its path along with a
// cleanup function.
func (s *ReelStore) Fetch(ctx context.Context, objectKey string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "reeltrip-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	localPath := filepath.Join(dir, filepath.Base(objectKey))
	start := time.Now()
	if err := s.client.FGetObject(ctx, s.bucket, objectKey, localPath, minio.GetObjectOptions{}); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to fetch reel %s: %w", objectKey, err)
	}

	s.logger.Debug("fetched reel from object store",
		zap.String("object_key", objectKey),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return localPath, cleanup, nil
}

// Delete removes a reel from the bucket.
func (s *ReelStore) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete reel %s: %w", objectKey, err)
	}
	return nil
}
