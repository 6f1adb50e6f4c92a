package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

func TestBackfill(t *testing.T) {
	const base = "https://cdn.example.com/videos/"

	t.Run("no videos", func(t *testing.T) {
		media := &memMedia{}
		uc := NewBackfillUseCase(media, newMemRepo(), &recordingDispatcher{}, "local", base, zap.NewNop())

		out, err := uc.Execute(context.Background(), BackfillInput{})
		require.NoError(t, err)
		assert.Equal(t, "No videos to process", out.Message)
		assert.Zero(t, out.Processed)
		assert.Equal(t, DefaultBackfillLimit, media.gotLimit)
	})

	t.Run("all covered", func(t *testing.T) {
		v := &entity.MediaRecord{ID: uuid.New(), UserID: "u1", FilePath: "u1/a.mp4"}
		media := &memMedia{videos: []*entity.MediaRecord{v}, withJobs: map[uuid.UUID]bool{v.ID: true}}
		uc := NewBackfillUseCase(media, newMemRepo(), &recordingDispatcher{}, "local", base, zap.NewNop())

		out, err := uc.Execute(context.Background(), BackfillInput{Limit: 10, UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "All videos already have transcription jobs", out.Message)
		assert.Equal(t, 1, out.Processed)
		assert.Zero(t, out.Created)
		assert.Equal(t, "u1", media.gotUserID)
		assert.Equal(t, 10, media.gotLimit)
	})

	t.Run("creates missing jobs", func(t *testing.T) {
		d := 12.0
		covered := &entity.MediaRecord{ID: uuid.New(), UserID: "u1", FilePath: "u1/a.mp4"}
		missing := &entity.MediaRecord{ID: uuid.New(), UserID: "u2", FilePath: "/u2/b.mp4", DurationSeconds: &d}
		media := &memMedia{
			videos:   []*entity.MediaRecord{covered, missing},
			withJobs: map[uuid.UUID]bool{covered.ID: true},
		}
		repo := newMemRepo()
		dispatcher := &recordingDispatcher{}
		uc := NewBackfillUseCase(media, repo, dispatcher, "local", base, zap.NewNop())

		out, err := uc.Execute(context.Background(), BackfillInput{})
		require.NoError(t, err)
		assert.Equal(t, "Created 1 transcription jobs", out.Message)
		assert.Equal(t, 2, out.Processed)
		assert.Equal(t, 1, out.Created)
		require.Len(t, out.JobIDs, 1)
		assert.Equal(t, out.JobIDs, dispatcher.ids)

		job := repo.get(out.JobIDs[0])
		assert.Equal(t, "u2", job.UserID)
		assert.Equal(t, "https://cdn.example.com/videos/u2/b.mp4", job.VideoURL)
		require.NotNil(t, job.VideoID)
		assert.Equal(t, missing.ID, *job.VideoID)
		assert.Equal(t, &d, job.VideoDurationSeconds)
		assert.Equal(t, entity.JobStatusPending, job.Status)
	})

	t.Run("dispatches every created job", func(t *testing.T) {
		var videos []*entity.MediaRecord
		for i := 0; i < 20; i++ {
			videos = append(videos, &entity.MediaRecord{ID: uuid.New(), UserID: "u1", FilePath: uuid.NewString() + ".mp4"})
		}
		media := &memMedia{videos: videos, withJobs: map[uuid.UUID]bool{}}
		dispatcher := &recordingDispatcher{}
		uc := NewBackfillUseCase(media, newMemRepo(), dispatcher, "rabbitmq", base, zap.NewNop())

		out, err := uc.Execute(context.Background(), BackfillInput{})
		require.NoError(t, err)
		assert.Equal(t, 20, out.Created)
		assert.ElementsMatch(t, out.JobIDs, dispatcher.ids)
	})
}
