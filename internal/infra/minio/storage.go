package minio

import (
	"context"
	"fmt"
	"net/url"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage gives access to the bucket holding journal videos.
type Storage struct {
	client      *miniogo.Client
	mediaBucket string
}

type StorageConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	MediaBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{client: client, mediaBucket: cfg.MediaBucket}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.mediaBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.mediaBucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.mediaBucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.mediaBucket, err)
		}
	}
	return nil
}

// PresignedURL returns a GET URL for objectKey valid for ttl. The object
// must exist; S3 caps ttl at seven days.
func (s *Storage) PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if _, err := s.client.StatObject(ctx, s.mediaBucket, objectKey, miniogo.StatObjectOptions{}); err != nil {
		return "", fmt.Errorf("stat %s: %w", objectKey, err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.mediaBucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

func (s *Storage) DownloadObject(ctx context.Context, objectKey string, destPath string) error {
	if err := s.client.FGetObject(ctx, s.mediaBucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", objectKey, err)
	}
	return nil
}

// Ping is used by the health endpoint.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.mediaBucket)
	return err
}
