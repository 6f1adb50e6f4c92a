package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

// Valid reports whether s is one of the persisted status values.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusTranscribing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition enforces the job state machine edges. failed -> pending is only
// taken by an explicit requeue; nothing re-dispatches a failed job on its own.
// transcribing -> pending hands back a job whose worker was shut down.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusTranscribing || to == JobStatusFailed
	case JobStatusTranscribing:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusPending
	case JobStatusFailed:
		return to == JobStatusPending
	default:
		return false
	}
}

type Job struct {
	ID                     uuid.UUID
	UserID                 string
	VideoID                *uuid.UUID
	VideoURL               string
	VideoDurationSeconds   *float64
	VideoSizeBytes         *int64
	NotifyEmail            string
	Status                 JobStatus
	Transcription          *Transcript
	TranscriptionText      string
	Language               string
	TranscriptHighlight    *HighlightSet
	Provider               string
	ProviderJobID          string
	ErrorMessage           string
	RetryCount             int
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
	TranscriptionStartedAt *time.Time
	CompletedAt            *time.Time
}

func NewJob(userID, videoURL string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		UserID:    userID,
		VideoURL:  videoURL,
		Status:    JobStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) transition(to JobStatus, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = now
	return nil
}

func (j *Job) MarkTranscribing(now time.Time) error {
	if err := j.transition(JobStatusTranscribing, now); err != nil {
		return err
	}
	j.TranscriptionStartedAt = &now
	return nil
}

// MarkCompleted stores the transcript and its denormalised fields. highlights may be nil.
func (j *Job) MarkCompleted(result *TranscriptionResult, highlights *HighlightSet, now time.Time) error {
	if result == nil || result.Transcript == nil {
		return fmt.Errorf("%w: completion without transcript", ErrInvalidTransition)
	}
	if err := j.transition(JobStatusCompleted, now); err != nil {
		return err
	}
	j.Transcription = result.Transcript
	j.TranscriptionText = result.Transcript.Text
	j.Language = result.Transcript.Language
	j.Provider = result.Provider
	j.ProviderJobID = result.ProviderJobID
	j.TranscriptHighlight = highlights
	j.ErrorMessage = ""
	j.CompletedAt = &now
	return nil
}

func (j *Job) MarkFailed(errMsg string, now time.Time) error {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	if err := j.transition(JobStatusFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = errMsg
	j.RetryCount++
	return nil
}

// Requeue moves a failed job back to pending. RetryCount and ErrorMessage are kept
// so the history of the previous attempt stays visible until the next run.
func (j *Job) Requeue(now time.Time) error {
	if j.Status != JobStatusFailed {
		return fmt.Errorf("%w: requeue from %s", ErrInvalidTransition, j.Status)
	}
	if err := j.transition(JobStatusPending, now); err != nil {
		return err
	}
	j.TranscriptionStartedAt = nil
	return nil
}

// Release returns a claimed job to pending after its worker stopped before
// reaching a terminal state. It is not a failure: RetryCount is unchanged.
func (j *Job) Release(now time.Time) error {
	if j.Status != JobStatusTranscribing {
		return fmt.Errorf("%w: release from %s", ErrInvalidTransition, j.Status)
	}
	if err := j.transition(JobStatusPending, now); err != nil {
		return err
	}
	j.TranscriptionStartedAt = nil
	return nil
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// AttachHighlights replaces the highlight set of a completed job.
func (j *Job) AttachHighlights(set *HighlightSet, now time.Time) error {
	if j.Status != JobStatusCompleted {
		return fmt.Errorf("%w: highlights on %s job", ErrInvalidTransition, j.Status)
	}
	j.TranscriptHighlight = set
	j.UpdatedAt = now
	return nil
}
