package entity

import "github.com/google/uuid"

// ProcessTranscriptionMessage is the inbound message on the transcription.process queue.
type ProcessTranscriptionMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobStatusMessage is published to the transcription.status queue after every terminal transition.
type JobStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	VideoID      string    `json:"video_id,omitempty"`
	Status       JobStatus `json:"status"`
	Language     string    `json:"language,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	HasHighlight bool      `json:"has_highlight"`
	ErrorMessage string    `json:"error_message,omitempty"`
	RetryCount   int       `json:"retry_count"`
}

func NewJobStatusMessage(job *Job) JobStatusMessage {
	msg := JobStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		Language:     job.Language,
		Provider:     job.Provider,
		HasHighlight: job.TranscriptHighlight != nil,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
	}
	if job.VideoID != nil {
		msg.VideoID = job.VideoID.String()
	}
	return msg
}
