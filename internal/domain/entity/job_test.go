package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobIsPending(t *testing.T) {
	job := NewJob("user-1", "https://x/video.mp4")

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, int64(1), job.Version)
	assert.Nil(t, job.Transcription)
	assert.Zero(t, job.RetryCount)
}

func TestJobHappyPath(t *testing.T) {
	job := NewJob("user-1", "https://x/video.mp4")
	now := time.Now().UTC()

	require.NoError(t, job.MarkTranscribing(now))
	require.NotNil(t, job.TranscriptionStartedAt)

	result := &TranscriptionResult{
		Transcript: &Transcript{Text: "hello world", Language: "en", Duration: 2},
		Provider:   "assemblyai",
	}
	require.NoError(t, job.MarkCompleted(result, nil, now))

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "hello world", job.TranscriptionText)
	assert.Equal(t, "en", job.Language)
	assert.Nil(t, job.TranscriptHighlight)
	require.NotNil(t, job.CompletedAt)
}

func TestJobRejectsIllegalTransitions(t *testing.T) {
	now := time.Now().UTC()
	result := &TranscriptionResult{Transcript: &Transcript{Text: "x"}}

	job := NewJob("user-1", "u")
	err := job.MarkCompleted(result, nil, now)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "pending -> completed must be rejected")

	require.NoError(t, job.MarkTranscribing(now))
	require.NoError(t, job.MarkCompleted(result, nil, now))

	assert.ErrorIs(t, job.MarkTranscribing(now), ErrInvalidTransition)
	assert.ErrorIs(t, job.MarkFailed("late failure", now), ErrInvalidTransition)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Zero(t, job.RetryCount)
}

func TestJobFailIncrementsRetryCount(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("user-1", "u")

	require.NoError(t, job.MarkTranscribing(now))
	require.NoError(t, job.MarkFailed("provider timeout", now))
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "provider timeout", job.ErrorMessage)

	require.NoError(t, job.Requeue(now))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.TranscriptionStartedAt)

	require.NoError(t, job.MarkFailed("", now))
	assert.Equal(t, 2, job.RetryCount)
	assert.NotEmpty(t, job.ErrorMessage)
}

func TestMarkCompletedRequiresTranscript(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("user-1", "u")
	require.NoError(t, job.MarkTranscribing(now))

	assert.ErrorIs(t, job.MarkCompleted(&TranscriptionResult{}, nil, now), ErrInvalidTransition)
	assert.Equal(t, JobStatusTranscribing, job.Status)
}

func TestCanTransitionTable(t *testing.T) {
	all := []JobStatus{JobStatusPending, JobStatusTranscribing, JobStatusCompleted, JobStatusFailed}
	allowed := map[[2]JobStatus]bool{
		{JobStatusPending, JobStatusTranscribing}:   true,
		{JobStatusPending, JobStatusFailed}:         true,
		{JobStatusTranscribing, JobStatusCompleted}: true,
		{JobStatusTranscribing, JobStatusFailed}:    true,
		{JobStatusTranscribing, JobStatusPending}:   true,
		{JobStatusFailed, JobStatusPending}:         true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]JobStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestReleaseReturnsClaimedJobToPending(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("u", "v")
	assert.ErrorIs(t, job.Release(now), ErrInvalidTransition)

	require.NoError(t, job.MarkTranscribing(now))
	require.NoError(t, job.Release(now))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.TranscriptionStartedAt)
	assert.Zero(t, job.RetryCount)
	assert.Empty(t, job.ErrorMessage)
}

func TestRequeueOnlyFromFailed(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("u", "v")
	require.NoError(t, job.MarkTranscribing(now))

	assert.ErrorIs(t, job.Requeue(now), ErrInvalidTransition)
	assert.Equal(t, JobStatusTranscribing, job.Status)
}

func TestAttachHighlightsOnlyOnCompleted(t *testing.T) {
	now := time.Now().UTC()
	set := &HighlightSet{Highlights: []Highlight{{Title: "t", Importance: 5}}}

	job := NewJob("u", "v")
	assert.ErrorIs(t, job.AttachHighlights(set, now), ErrInvalidTransition)

	require.NoError(t, job.MarkTranscribing(now))
	require.NoError(t, job.MarkCompleted(&TranscriptionResult{Transcript: &Transcript{Text: "x"}}, nil, now))
	require.NoError(t, job.AttachHighlights(set, now))
	assert.Same(t, set, job.TranscriptHighlight)
}
