package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// Update persists job only if the stored row still has expectedVersion.
	// On success job.Version is bumped; otherwise entity.ErrJobConflict is returned.
	Update(ctx context.Context, job *entity.Job, expectedVersion int64) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Job, error)
}

type ChunkRecorder interface {
	SaveChunk(ctx context.Context, chunk *entity.Chunk) error
}

type MediaRepository interface {
	ListVideos(ctx context.Context, userID string, limit int) ([]*entity.MediaRecord, error)
	VideoIDsWithJobs(ctx context.Context, videoIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}
