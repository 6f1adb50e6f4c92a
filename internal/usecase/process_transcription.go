package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
)

// failurePersistTimeout bounds the failure bookkeeping that runs after the
// job context may already be cancelled.
const failurePersistTimeout = 10 * time.Second

// JobFailedError reports an orchestration failure that has already been
// recorded on the job row. Callers must not retry the delivery.
type JobFailedError struct {
	Job   *entity.Job
	Cause error
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.Job.ID, e.Cause)
}

func (e *JobFailedError) Unwrap() error {
	return e.Cause
}

type ProcessTranscriptionUseCase struct {
	repo        port.JobRepository
	transcriber port.Transcriber
	highlights  port.HighlightGenerator
	publisher   port.StatusPublisher
	dlq         port.DLQPublisher
	notifier    port.FailureNotifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessTranscriptionUseCase wires the orchestrator. publisher, dlq and
// notifier may be nil when the corresponding infrastructure is not configured.
func NewProcessTranscriptionUseCase(
	repo port.JobRepository,
	transcriber port.Transcriber,
	highlights port.HighlightGenerator,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
) *ProcessTranscriptionUseCase {
	return &ProcessTranscriptionUseCase{
		repo:        repo,
		transcriber: transcriber,
		highlights:  highlights,
		publisher:   publisher,
		dlq:         dlq,
		notifier:    notifier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Execute drives one pending job to completed or failed. Errors before the
// claim leave the row untouched; errors after it are persisted on the row and
// returned as *JobFailedError. When ctx is cancelled mid-run the job goes
// back to pending and entity.ErrJobInterrupted is returned.
func (uc *ProcessTranscriptionUseCase) Execute(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessTranscriptionUseCase.Execute",
		trace.WithAttributes(attribute.String("job.id", jobID.String())),
	)
	defer span.End()

	totalTimer := time.Now()
	log := uc.logger.With(
		zap.String("job_id", jobID.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load job: %w", err)
	}

	expected := job.Version
	if err := job.MarkTranscribing(uc.now()); err != nil {
		log.Warn("job cannot be claimed", zap.String("status", string(job.Status)))
		return nil, err
	}
	if err := uc.repo.Update(ctx, job, expected); err != nil {
		if errors.Is(err, entity.ErrJobConflict) {
			log.Info("job claimed by another worker")
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	log.Info("transcription started", zap.String("video_url", job.VideoURL))

	result, err := uc.transcribe(ctx, job, log)
	if interrupted(ctx) {
		span.SetStatus(codes.Error, "interrupted")
		return nil, uc.release(ctx, job.ID, log)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, uc.fail(ctx, job.ID, err, log)
	}

	highlights := uc.generateHighlights(ctx, result.Transcript, log)
	if interrupted(ctx) {
		span.SetStatus(codes.Error, "interrupted")
		return nil, uc.release(ctx, job.ID, log)
	}

	expected = job.Version
	if err := job.MarkCompleted(result, highlights, uc.now()); err != nil {
		return nil, uc.fail(ctx, job.ID, err, log)
	}
	if err := uc.repo.Update(ctx, job, expected); err != nil {
		log.Error("failed to persist completed job", zap.Error(err))
		return nil, uc.fail(ctx, job.ID, fmt.Errorf("save transcription: %w", err), log)
	}

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues(string(entity.JobStatusCompleted)).Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("transcription completed",
		zap.String("provider", job.Provider),
		zap.String("language", job.Language),
		zap.Int("segments", len(job.Transcription.Segments)),
		zap.Bool("highlights", highlights != nil),
	)
	return job, nil
}

func (uc *ProcessTranscriptionUseCase) transcribe(ctx context.Context, job *entity.Job, log *zap.Logger) (*entity.TranscriptionResult, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "transcribe")
	defer span.End()
	start := time.Now()

	req := port.TranscriptionRequest{MediaURL: job.VideoURL, JobID: job.ID}
	if job.VideoDurationSeconds != nil {
		req.DurationHint = *job.VideoDurationSeconds
	}
	if job.VideoSizeBytes != nil {
		req.SizeHint = *job.VideoSizeBytes
	}

	result, err := uc.transcriber.Transcribe(ctx, req)
	metrics.JobProcessingDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("transcription failed", zap.String("provider", uc.transcriber.Name()), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result == nil || result.Transcript.IsBlank() {
		return nil, fmt.Errorf("%w: provider returned no text", entity.ErrProviderProcessing)
	}
	span.SetAttributes(attribute.String("provider", result.Provider))
	return result, nil
}

// generateHighlights never fails the job; a nil set is stored instead.
func (uc *ProcessTranscriptionUseCase) generateHighlights(ctx context.Context, t *entity.Transcript, log *zap.Logger) *entity.HighlightSet {
	if uc.highlights == nil {
		return nil
	}
	ctx, span := otel.Tracer("usecase").Start(ctx, "generate_highlights")
	defer span.End()
	start := time.Now()

	set, err := uc.highlights.Generate(ctx, t)
	metrics.JobProcessingDuration.WithLabelValues("highlights").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HighlightsTotal.WithLabelValues("error").Inc()
		log.Warn("highlight generation failed, continuing without highlights", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil
	}
	metrics.HighlightsTotal.WithLabelValues("success").Inc()
	return set
}

// fail records cause on the job. The row is reloaded so that the failure is
// applied to the latest version; one conflict is retried.
func (uc *ProcessTranscriptionUseCase) fail(ctx context.Context, jobID uuid.UUID, cause error, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failurePersistTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		job, err := uc.repo.FindByID(ctx, jobID)
		if err != nil {
			return fmt.Errorf("reload job after %v: %w", cause, err)
		}
		expected := job.Version
		if err := job.MarkFailed(cause.Error(), uc.now()); err != nil {
			return fmt.Errorf("mark failed after %v: %w", cause, err)
		}
		lastErr = uc.repo.Update(ctx, job, expected)
		if lastErr == nil {
			metrics.JobsProcessedTotal.WithLabelValues(string(entity.JobStatusFailed)).Inc()
			log.Warn("job marked failed",
				zap.String("error_message", job.ErrorMessage),
				zap.Int("retry_count", job.RetryCount),
			)
			uc.publishStatus(ctx, job, log)
			uc.notifyFailure(ctx, job, log)
			return &JobFailedError{Job: job, Cause: cause}
		}
		if !errors.Is(lastErr, entity.ErrJobConflict) {
			break
		}
	}
	log.Error("failed to persist job failure", zap.Error(lastErr), zap.NamedError("cause", cause))
	return fmt.Errorf("persist failure %v: %w", cause, lastErr)
}

// interrupted reports a cancellation from the caller, as opposed to a
// deadline, which is recorded as an ordinary failure.
func interrupted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

// release hands a claimed job back to pending so a later delivery can run it.
// The returned error wraps entity.ErrJobInterrupted.
func (uc *ProcessTranscriptionUseCase) release(ctx context.Context, jobID uuid.UUID, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failurePersistTimeout)
	defer cancel()

	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: reload job: %v", entity.ErrJobInterrupted, err)
	}
	expected := job.Version
	if err := job.Release(uc.now()); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrJobInterrupted, err)
	}
	if err := uc.repo.Update(ctx, job, expected); err != nil {
		log.Error("failed to release interrupted job", zap.Error(err))
		return fmt.Errorf("%w: save release: %v", entity.ErrJobInterrupted, err)
	}
	metrics.JobsProcessedTotal.WithLabelValues("interrupted").Inc()
	log.Info("job interrupted, returned to pending")
	return entity.ErrJobInterrupted
}

func (uc *ProcessTranscriptionUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	data, err := json.Marshal(entity.NewJobStatusMessage(job))
	if err != nil {
		log.Error("failed to encode status", zap.Error(err))
		return
	}
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

func (uc *ProcessTranscriptionUseCase) notifyFailure(ctx context.Context, job *entity.Job, log *zap.Logger) {
	if uc.notifier == nil || job.NotifyEmail == "" {
		return
	}
	if err := uc.notifier.NotifyFailure(ctx, job.NotifyEmail, job.ID.String(), job.VideoURL, job.ErrorMessage); err != nil {
		log.Warn("failure notification not sent", zap.Error(err))
	}
}

// HandleMessage adapts Execute to the queue consumer. It returns an error
// only for infrastructure problems worth a redelivery.
func (uc *ProcessTranscriptionUseCase) HandleMessage(ctx context.Context, body []byte) error {
	var msg entity.ProcessTranscriptionMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == uuid.Nil {
		reason := "missing job_id"
		if err != nil {
			reason = "unmarshal_error: " + err.Error()
		}
		uc.logger.Error("invalid process message", zap.String("reason", reason), zap.ByteString("body", body))
		return uc.deadLetter(ctx, body, reason)
	}

	_, err := uc.Execute(ctx, msg.JobID)
	var failed *JobFailedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &failed):
		return nil
	case errors.Is(err, entity.ErrJobNotFound):
		uc.logger.Warn("message for unknown job", zap.String("job_id", msg.JobID.String()))
		return uc.deadLetter(ctx, body, err.Error())
	case errors.Is(err, entity.ErrJobInterrupted):
		uc.logger.Info("job interrupted, delivery will be requeued", zap.String("job_id", msg.JobID.String()))
		return err
	case errors.Is(err, entity.ErrInvalidTransition), errors.Is(err, entity.ErrJobConflict):
		uc.logger.Info("duplicate delivery ignored", zap.String("job_id", msg.JobID.String()), zap.Error(err))
		return nil
	default:
		return err
	}
}

func (uc *ProcessTranscriptionUseCase) deadLetter(ctx context.Context, body []byte, reason string) error {
	if uc.dlq == nil {
		return nil
	}
	if err := uc.dlq.PublishToDLQ(ctx, body, reason); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
	return nil
}
