package entity

import (
	"time"

	"github.com/google/uuid"
)

// MediaRecord is a row of the videos table, read by the backfill sweep.
type MediaRecord struct {
	ID              uuid.UUID
	UserID          string
	FilePath        string
	DurationSeconds *float64
	CreatedAt       time.Time
}

type ChunkStatus string

const (
	ChunkStatusCompleted ChunkStatus = "completed"
	ChunkStatusFailed    ChunkStatus = "failed"
)

// Chunk is the audit record of one independently transcribed slice of a large input.
type Chunk struct {
	JobID           uuid.UUID
	Index           int
	SizeBytes       int64
	Text            string
	DurationSeconds float64
	Status          ChunkStatus
	ErrorMessage    string
	CreatedAt       time.Time
}
