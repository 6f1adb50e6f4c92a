package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// SaveChunk upserts on (job_id, chunk_index) so a re-run of a requeued job
// overwrites the previous attempt's rows.
func (r *ChunkRepository) SaveChunk(ctx context.Context, chunk *entity.Chunk) error {
	query := `
		INSERT INTO transcription_chunks (
			job_id, chunk_index, size_bytes, transcription, duration_seconds,
			status, error_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (job_id, chunk_index) DO UPDATE SET
			size_bytes=EXCLUDED.size_bytes, transcription=EXCLUDED.transcription,
			duration_seconds=EXCLUDED.duration_seconds, status=EXCLUDED.status,
			error_message=EXCLUDED.error_message, created_at=EXCLUDED.created_at`

	_, err := r.pool.Exec(ctx, query,
		chunk.JobID, chunk.Index, chunk.SizeBytes, chunk.Text, chunk.DurationSeconds,
		string(chunk.Status), chunk.ErrorMessage, chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save chunk %d of job %s: %w", chunk.Index, chunk.JobID, err)
	}
	return nil
}

func (r *ChunkRepository) ListChunks(ctx context.Context, jobID uuid.UUID) ([]*entity.Chunk, error) {
	query := `
		SELECT job_id, chunk_index, size_bytes, transcription, duration_seconds,
			status, error_message, created_at
		FROM transcription_chunks WHERE job_id=$1 ORDER BY chunk_index`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*entity.Chunk
	for rows.Next() {
		c := &entity.Chunk{}
		var status string
		if err := rows.Scan(&c.JobID, &c.Index, &c.SizeBytes, &c.Text, &c.DurationSeconds,
			&status, &c.ErrorMessage, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Status = entity.ChunkStatus(status)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
