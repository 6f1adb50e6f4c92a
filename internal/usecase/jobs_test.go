package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

func seedJob(t *testing.T, repo *memRepo, userID string, status entity.JobStatus) *entity.Job {
	t.Helper()
	job := entity.NewJob(userID, "videos/a.mp4")
	job.Status = status
	if status == entity.JobStatusFailed {
		job.ErrorMessage = "timeout"
		job.RetryCount = 1
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestJobsGetIsOwnerScoped(t *testing.T) {
	repo := newMemRepo()
	uc := NewJobsUseCase(repo, &recordingDispatcher{}, "local", zap.NewNop())
	job := seedJob(t, repo, "owner", entity.JobStatusPending)

	got, err := uc.Get(context.Background(), "owner", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = uc.Get(context.Background(), "intruder", job.ID)
	assert.ErrorIs(t, err, entity.ErrJobNotFound)

	_, err = uc.Get(context.Background(), "owner", uuid.New())
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
}

func TestJobsListClampsLimit(t *testing.T) {
	repo := newMemRepo()
	uc := NewJobsUseCase(repo, &recordingDispatcher{}, "local", zap.NewNop())
	for i := 0; i < 3; i++ {
		seedJob(t, repo, "owner", entity.JobStatusPending)
		time.Sleep(time.Millisecond)
	}
	seedJob(t, repo, "other", entity.JobStatusPending)

	jobs, err := uc.List(context.Background(), "owner", 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	jobs, err = uc.List(context.Background(), "owner", 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.False(t, jobs[0].CreatedAt.Before(jobs[1].CreatedAt))
}

func TestJobsRetryRequeuesFailedJob(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := NewJobsUseCase(repo, dispatcher, "local", zap.NewNop())
	job := seedJob(t, repo, "owner", entity.JobStatusFailed)

	got, err := uc.Retry(context.Background(), "owner", job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, entity.JobStatusPending, repo.get(job.ID).Status)
	assert.Equal(t, []uuid.UUID{job.ID}, dispatcher.ids)
}

func TestJobsRetryRejectsOtherStates(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := NewJobsUseCase(repo, dispatcher, "local", zap.NewNop())

	for _, status := range []entity.JobStatus{entity.JobStatusTranscribing, entity.JobStatusCompleted} {
		job := seedJob(t, repo, "owner", status)
		_, err := uc.Retry(context.Background(), "owner", job.ID)
		assert.ErrorIs(t, err, entity.ErrInvalidTransition, status)
	}

	failed := seedJob(t, repo, "owner", entity.JobStatusFailed)
	_, err := uc.Retry(context.Background(), "intruder", failed.ID)
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
	assert.Empty(t, dispatcher.ids)
}

func TestJobsRetryRedispatchesPendingJob(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := NewJobsUseCase(repo, dispatcher, "local", zap.NewNop())
	job := seedJob(t, repo, "owner", entity.JobStatusPending)

	got, err := uc.Retry(context.Background(), "owner", job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, got.Status)
	assert.Equal(t, job.Version, repo.get(job.ID).Version)
	assert.Equal(t, []uuid.UUID{job.ID}, dispatcher.ids)
}
