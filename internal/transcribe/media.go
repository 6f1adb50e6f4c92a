// Package transcribe turns a media URL into a canonical transcript using an
// external speech-to-text provider.
package transcribe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

// MediaResolver maps the URLs stored on jobs to object keys in the media
// bucket and issues time-limited URLs a provider can fetch.
type MediaResolver struct {
	storage    port.MediaStorage
	publicBase string
	bucket     string
	ttl        time.Duration
}

func NewMediaResolver(storage port.MediaStorage, publicBase, bucket string, ttl time.Duration) *MediaResolver {
	return &MediaResolver{storage: storage, publicBase: publicBase, bucket: bucket, ttl: ttl}
}

// ObjectKey returns the object key for rawURL. managed is false for http(s)
// URLs that do not point into the media bucket; those are used as-is.
func (r *MediaResolver) ObjectKey(rawURL string) (key string, managed bool, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false, fmt.Errorf("%w: empty media url", entity.ErrSignedURL)
	}

	if r.publicBase != "" && strings.HasPrefix(rawURL, r.publicBase) {
		return cleanKey(strings.TrimPrefix(rawURL, r.publicBase))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("%w: parse media url: %v", entity.ErrSignedURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		if u.Scheme != "" {
			return "", false, fmt.Errorf("%w: unsupported scheme %q", entity.ErrSignedURL, u.Scheme)
		}
		return cleanKey(u.Path)
	}

	for _, prefix := range []string{
		"/storage/v1/object/public/" + r.bucket + "/",
		"/storage/v1/object/sign/" + r.bucket + "/",
		"/storage/v1/object/" + r.bucket + "/",
	} {
		if idx := strings.Index(u.Path, prefix); idx >= 0 {
			return cleanKey(u.Path[idx+len(prefix):])
		}
	}
	if strings.Contains(u.Path, "/storage/v1/object/") {
		return "", false, fmt.Errorf("%w: storage url outside bucket %q", entity.ErrSignedURL, r.bucket)
	}
	return "", false, nil
}

func cleanKey(raw string) (string, bool, error) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	key, err := url.PathUnescape(strings.Trim(raw, "/"))
	if err != nil {
		return "", false, fmt.Errorf("%w: unescape object key: %v", entity.ErrSignedURL, err)
	}
	if key == "" {
		return "", false, fmt.Errorf("%w: could not extract object key", entity.ErrSignedURL)
	}
	return key, true, nil
}

// AccessibleURL returns a URL the provider can download without credentials.
func (r *MediaResolver) AccessibleURL(ctx context.Context, rawURL string) (string, error) {
	key, managed, err := r.ObjectKey(rawURL)
	if err != nil {
		return "", err
	}
	if !managed {
		return rawURL, nil
	}
	signed, err := r.storage.PresignedURL(ctx, key, r.ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrSignedURL, err)
	}
	if signed == "" {
		return "", fmt.Errorf("%w: storage returned an empty url", entity.ErrSignedURL)
	}
	return signed, nil
}
