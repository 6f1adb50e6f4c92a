package transcribe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

// SplitFile cuts path into consecutive pieces of at most maxBytes each and
// writes them into dir. The returned paths are in order.
func SplitFile(path, dir string, maxBytes int64) ([]string, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("split %s: chunk size must be positive", filepath.Base(path))
	}
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	ext := filepath.Ext(path)
	var paths []string
	for i := 0; ; i++ {
		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%03d%s", i, ext))
		n, err := writeChunk(src, chunkPath, maxBytes)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = os.Remove(chunkPath)
			break
		}
		paths = append(paths, chunkPath)
		if n < maxBytes {
			break
		}
	}
	return paths, nil
}

func writeChunk(src io.Reader, dest string, maxBytes int64) (int64, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}
	n, err := io.CopyN(f, src, maxBytes)
	closeErr := f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close %s: %w", filepath.Base(dest), closeErr)
	}
	return n, nil
}

type chunkTranscript struct {
	Text     string
	Language string
	Duration float64
	Segments []entity.Segment
}

// MergeChunks joins per-chunk transcripts in order. Segment times of each
// chunk are shifted by the total duration of the chunks before it; when any
// chunk lacks segments the merged transcript carries none.
func MergeChunks(parts []chunkTranscript) *entity.Transcript {
	out := &entity.Transcript{Chunks: len(parts)}

	texts := make([]string, 0, len(parts))
	keepSegments := len(parts) > 0
	offset := 0.0
	for _, p := range parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
		if out.Language == "" {
			out.Language = p.Language
		}
		if len(p.Segments) == 0 {
			keepSegments = false
		}

		duration := p.Duration
		if duration <= 0 && len(p.Segments) > 0 {
			duration = p.Segments[len(p.Segments)-1].End
		}
		if keepSegments {
			for _, s := range p.Segments {
				out.Segments = append(out.Segments, entity.Segment{
					Start: entity.Round1(s.Start + offset),
					End:   entity.Round1(s.End + offset),
					Text:  s.Text,
				})
			}
		}
		offset += duration
	}

	out.Text = strings.Join(texts, " ")
	out.Duration = entity.Round1(offset)
	if !keepSegments {
		out.Segments = nil
	}
	return out
}
