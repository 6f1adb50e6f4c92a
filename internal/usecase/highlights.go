package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

// HighlightsUseCase backs the standalone highlight endpoint. When a job id is
// given the set is also stored on that job; a failed store does not fail the
// request.
type HighlightsUseCase struct {
	generator port.HighlightGenerator
	repo      port.JobRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewHighlightsUseCase(generator port.HighlightGenerator, repo port.JobRepository, logger *zap.Logger) *HighlightsUseCase {
	return &HighlightsUseCase{
		generator: generator,
		repo:      repo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *HighlightsUseCase) Execute(ctx context.Context, transcript *entity.Transcript, jobID *uuid.UUID) (*entity.HighlightSet, error) {
	set, err := uc.generator.Generate(ctx, transcript)
	if err != nil {
		return nil, err
	}
	if jobID != nil {
		uc.attach(ctx, *jobID, set)
	}
	return set, nil
}

func (uc *HighlightsUseCase) attach(ctx context.Context, jobID uuid.UUID, set *entity.HighlightSet) {
	log := uc.logger.With(zap.String("job_id", jobID.String()))

	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		log.Warn("highlights not stored", zap.Error(err))
		return
	}
	expected := job.Version
	if err := job.AttachHighlights(set, uc.now()); err != nil {
		log.Warn("highlights not stored", zap.Error(err))
		return
	}
	if err := uc.repo.Update(ctx, job, expected); err != nil {
		log.Warn("highlights not stored", zap.Error(err))
		return
	}
	log.Info("highlights stored", zap.Int("count", len(set.Highlights)))
}
