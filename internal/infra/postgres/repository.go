package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `
	id, user_id, video_id, video_url, video_duration_seconds, video_size_bytes,
	notify_email, status, transcription, transcription_text, transcription_language,
	transcript_highlight, provider, provider_job_id, error_message, retry_count,
	version, created_at, updated_at, transcription_started_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	transcription, highlight, err := encodePayloads(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transcription_jobs (` + jobColumns + `
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

	_, err = r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoID, job.VideoURL, job.VideoDurationSeconds, job.VideoSizeBytes,
		job.NotifyEmail, string(job.Status), transcription, job.TranscriptionText, job.Language,
		highlight, job.Provider, job.ProviderJobID, job.ErrorMessage, job.RetryCount,
		job.Version, job.CreatedAt, job.UpdatedAt, job.TranscriptionStartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update writes every mutable column of job if the stored version still
// equals expectedVersion, and bumps the version by one.
func (r *JobRepository) Update(ctx context.Context, job *entity.Job, expectedVersion int64) error {
	transcription, highlight, err := encodePayloads(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE transcription_jobs SET
			status=$3, transcription=$4, transcription_text=$5, transcription_language=$6,
			transcript_highlight=$7, provider=$8, provider_job_id=$9, error_message=$10,
			retry_count=$11, updated_at=$12, transcription_started_at=$13, completed_at=$14,
			notify_email=$15, version=version+1
		WHERE id=$1 AND version=$2`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, expectedVersion,
		string(job.Status), transcription, job.TranscriptionText, job.Language,
		highlight, job.Provider, job.ProviderJobID, job.ErrorMessage,
		job.RetryCount, job.UpdatedAt, job.TranscriptionStartedAt, job.CompletedAt,
		job.NotifyEmail,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transcription_jobs WHERE id=$1)`, job.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if !exists {
			return fmt.Errorf("update job %s: %w", job.ID, entity.ErrJobNotFound)
		}
		return fmt.Errorf("update job %s at version %d: %w", job.ID, expectedVersion, entity.ErrJobConflict)
	}
	job.Version = expectedVersion + 1
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_jobs WHERE id=$1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, entity.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM transcription_jobs WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*entity.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	job := &entity.Job{}
	var status string
	var transcription, highlight []byte

	err := row.Scan(
		&job.ID, &job.UserID, &job.VideoID, &job.VideoURL, &job.VideoDurationSeconds, &job.VideoSizeBytes,
		&job.NotifyEmail, &status, &transcription, &job.TranscriptionText, &job.Language,
		&highlight, &job.Provider, &job.ProviderJobID, &job.ErrorMessage, &job.RetryCount,
		&job.Version, &job.CreatedAt, &job.UpdatedAt, &job.TranscriptionStartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(status)

	if len(transcription) > 0 {
		job.Transcription = &entity.Transcript{}
		if err := json.Unmarshal(transcription, job.Transcription); err != nil {
			return nil, fmt.Errorf("decode transcription: %w", err)
		}
	}
	if len(highlight) > 0 {
		job.TranscriptHighlight = &entity.HighlightSet{}
		if err := json.Unmarshal(highlight, job.TranscriptHighlight); err != nil {
			return nil, fmt.Errorf("decode transcript highlight: %w", err)
		}
	}
	return job, nil
}

func encodePayloads(job *entity.Job) (transcription, highlight []byte, err error) {
	if job.Transcription != nil {
		if transcription, err = json.Marshal(job.Transcription); err != nil {
			return nil, nil, fmt.Errorf("encode transcription: %w", err)
		}
	}
	if job.TranscriptHighlight != nil {
		if highlight, err = json.Marshal(job.TranscriptHighlight); err != nil {
			return nil, nil, fmt.Errorf("encode transcript highlight: %w", err)
		}
	}
	return transcription, highlight, nil
}
