package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// JobsUseCase serves owner-scoped reads and the manual retry of stalled or failed jobs.
type JobsUseCase struct {
	repo       port.JobRepository
	dispatcher port.JobDispatcher
	mode       string
	logger     *zap.Logger
	now        func() time.Time
}

func NewJobsUseCase(repo port.JobRepository, dispatcher port.JobDispatcher, mode string, logger *zap.Logger) *JobsUseCase {
	return &JobsUseCase{
		repo:       repo,
		dispatcher: dispatcher,
		mode:       mode,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get returns ErrJobNotFound for jobs owned by someone else, so callers
// cannot probe which ids exist.
func (uc *JobsUseCase) Get(ctx context.Context, userID string, jobID uuid.UUID) (*entity.Job, error) {
	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, entity.ErrJobNotFound
	}
	return job, nil
}

func (uc *JobsUseCase) List(ctx context.Context, userID string, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return uc.repo.ListByUser(ctx, userID, limit)
}

// Retry requeues a failed job owned by userID and dispatches it again. A
// pending job, left behind by a failed dispatch or an interrupted worker, is
// dispatched as is; the claim in the orchestrator drops duplicates.
func (uc *JobsUseCase) Retry(ctx context.Context, userID string, jobID uuid.UUID) (*entity.Job, error) {
	job, err := uc.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	log := uc.logger.With(zap.String("job_id", job.ID.String()), zap.String("user_id", userID))
	if job.Status == entity.JobStatusPending {
		log.Info("re-dispatching pending job")
		Dispatch(ctx, uc.dispatcher, uc.mode, job.ID, log)
		return job, nil
	}

	expected := job.Version
	if err := job.Requeue(uc.now()); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, job, expected); err != nil {
		return nil, fmt.Errorf("requeue job: %w", err)
	}

	log.Info("job requeued", zap.Int("retry_count", job.RetryCount))
	Dispatch(ctx, uc.dispatcher, uc.mode, job.ID, log)
	return job, nil
}
