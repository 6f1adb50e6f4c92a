package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

// MediaRepository reads the journal app's videos table.
type MediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(pool *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

// ListVideos returns the newest videos that have a stored file, optionally
// restricted to one user.
func (r *MediaRepository) ListVideos(ctx context.Context, userID string, limit int) ([]*entity.MediaRecord, error) {
	query := `
		SELECT id, user_id, file_path, duration, created_at
		FROM videos
		WHERE file_path IS NOT NULL AND ($2::text = '' OR user_id = $2)
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*entity.MediaRecord
	for rows.Next() {
		v := &entity.MediaRecord{}
		if err := rows.Scan(&v.ID, &v.UserID, &v.FilePath, &v.DurationSeconds, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

func (r *MediaRepository) VideoIDsWithJobs(ctx context.Context, videoIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(videoIDs))
	if len(videoIDs) == 0 {
		return found, nil
	}

	ids := make([]string, len(videoIDs))
	for i, id := range videoIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT video_id FROM transcription_jobs WHERE video_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("find existing jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan video id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}
