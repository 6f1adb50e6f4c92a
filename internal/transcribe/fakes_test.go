package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/retry"
)

type fakeStorage struct {
	presignErr error
	objects    map[string][]byte
	presigned  []string
}

func (s *fakeStorage) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	s.presigned = append(s.presigned, key)
	return "https://signed.example.com/" + key + "?sig=abc", nil
}

func (s *fakeStorage) DownloadObject(_ context.Context, key, dest string) error {
	data, ok := s.objects[key]
	if !ok {
		return errors.New("object not found")
	}
	return os.WriteFile(dest, data, 0o644)
}

// copyExtractor stands in for ffmpeg by copying the input unchanged.
type copyExtractor struct{}

func (copyExtractor) ExtractAudio(_ context.Context, in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (copyExtractor) ProbeDuration(context.Context, string) (float64, error) { return 0, nil }

type chunkLog struct {
	mu     sync.Mutex
	chunks []*entity.Chunk
}

func (c *chunkLog) SaveChunk(_ context.Context, chunk *entity.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *chunk
	c.chunks = append(c.chunks, &cp)
	return nil
}

func (c *chunkLog) byIndex() map[int]*entity.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]*entity.Chunk, len(c.chunks))
	for _, ch := range c.chunks {
		out[ch.Index] = ch
	}
	return out
}

type stubTranscriber struct {
	name   string
	result *entity.TranscriptionResult
	err    error
	calls  int
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) Transcribe(context.Context, port.TranscriptionRequest) (*entity.TranscriptionResult, error) {
	s.calls++
	return s.result, s.err
}

func fastRetry() retry.Options {
	return retry.Options{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffMultiplier: 2}
}

func testResolver(storage port.MediaStorage) *MediaResolver {
	return NewMediaResolver(storage, "http://minio:9000/videos/", "videos", time.Hour)
}
