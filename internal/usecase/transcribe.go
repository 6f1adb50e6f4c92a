package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

// TranscribeUseCase runs the provider adapter directly without touching the
// job row. It backs the stateless transcribe endpoint.
type TranscribeUseCase struct {
	transcriber port.Transcriber
}

func NewTranscribeUseCase(transcriber port.Transcriber) *TranscribeUseCase {
	return &TranscribeUseCase{transcriber: transcriber}
}

func (uc *TranscribeUseCase) Execute(ctx context.Context, videoURL string, jobID uuid.UUID) (*entity.TranscriptionResult, error) {
	if strings.TrimSpace(videoURL) == "" || jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: videoUrl and jobId are required", entity.ErrInvalidRequest)
	}
	return uc.transcriber.Transcribe(ctx, port.TranscriptionRequest{MediaURL: videoURL, JobID: jobID})
}
