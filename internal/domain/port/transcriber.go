package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

type TranscriptionRequest struct {
	MediaURL string
	JobID    uuid.UUID
	// Hints are optional; zero means unknown.
	DurationHint float64
	SizeHint     int64
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req TranscriptionRequest) (*entity.TranscriptionResult, error)
}

type HighlightGenerator interface {
	Generate(ctx context.Context, transcript *entity.Transcript) (*entity.HighlightSet, error)
}
