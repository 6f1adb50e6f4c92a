package entity

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")

	ErrJobNotFound       = errors.New("job not found")
	ErrJobConflict       = errors.New("job was modified concurrently")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobInterrupted    = errors.New("job interrupted by shutdown")

	ErrProviderSubmit      = errors.New("transcription provider submit failed")
	ErrProviderPollTimeout = errors.New("transcription provider poll timeout")
	ErrProviderProcessing  = errors.New("transcription provider processing error")
	ErrSignedURL           = errors.New("signed url error")

	ErrEmptyTranscript        = errors.New("empty transcript")
	ErrInvalidHighlightSchema = errors.New("invalid highlight schema")
)
