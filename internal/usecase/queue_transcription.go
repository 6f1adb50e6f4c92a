package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
)

const QueuedMessage = "Transcription queued successfully"

type QueueTranscriptionInput struct {
	UserID         string
	UserEmail      string
	VideoURL       string
	VideoID        *uuid.UUID
	VideoDuration  *float64
	VideoSizeBytes *int64
}

type QueueTranscriptionOutput struct {
	JobID  uuid.UUID
	Status entity.JobStatus
}

// Dispatch hands a stored job to the dispatcher. A failure is logged and
// counted; the job stays pending and can be picked up again by a retry.
func Dispatch(ctx context.Context, d port.JobDispatcher, mode string, jobID uuid.UUID, log *zap.Logger) bool {
	if err := d.Dispatch(ctx, jobID); err != nil {
		metrics.DispatchTotal.WithLabelValues(mode, "error").Inc()
		log.Error("failed to dispatch job", zap.String("job_id", jobID.String()), zap.Error(err))
		return false
	}
	metrics.DispatchTotal.WithLabelValues(mode, "success").Inc()
	return true
}

type QueueTranscriptionUseCase struct {
	repo       port.JobRepository
	dispatcher port.JobDispatcher
	mode       string
	logger     *zap.Logger
}

func NewQueueTranscriptionUseCase(repo port.JobRepository, dispatcher port.JobDispatcher, mode string, logger *zap.Logger) *QueueTranscriptionUseCase {
	return &QueueTranscriptionUseCase{repo: repo, dispatcher: dispatcher, mode: mode, logger: logger}
}

func (uc *QueueTranscriptionUseCase) Execute(ctx context.Context, in QueueTranscriptionInput) (*QueueTranscriptionOutput, error) {
	if in.UserID == "" {
		return nil, entity.ErrUnauthorized
	}
	if strings.TrimSpace(in.VideoURL) == "" {
		return nil, fmt.Errorf("%w: videoUrl is required", entity.ErrInvalidRequest)
	}

	job := entity.NewJob(in.UserID, strings.TrimSpace(in.VideoURL))
	job.VideoID = in.VideoID
	job.VideoDurationSeconds = in.VideoDuration
	job.VideoSizeBytes = in.VideoSizeBytes
	job.NotifyEmail = in.UserEmail

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create transcription job: %w", err)
	}

	log := uc.logger.With(zap.String("job_id", job.ID.String()), zap.String("user_id", job.UserID))
	log.Info("transcription job queued")

	Dispatch(ctx, uc.dispatcher, uc.mode, job.ID, log)

	return &QueueTranscriptionOutput{JobID: job.ID, Status: job.Status}, nil
}
