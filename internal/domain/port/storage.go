package port

import (
	"context"
	"time"
)

type MediaStorage interface {
	PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	DownloadObject(ctx context.Context, objectKey string, destPath string) error
}
