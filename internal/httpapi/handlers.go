package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/usecase"
)

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err)
	}
	return nil
}

func parseJobID(raw, field string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", entity.ErrInvalidRequest, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", entity.ErrInvalidRequest, field)
	}
	return id, nil
}

type queueRequest struct {
	VideoURL       string   `json:"videoUrl"`
	VideoDuration  *float64 `json:"videoDuration"`
	VideoSizeBytes *int64   `json:"videoSizeBytes"`
	VideoID        string   `json:"videoId"`
}

func (s *Server) queueTranscription(c *fiber.Ctx) error {
	var req queueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user := currentUser(c)

	in := usecase.QueueTranscriptionInput{
		UserID:         user.ID,
		UserEmail:      user.Email,
		VideoURL:       req.VideoURL,
		VideoDuration:  req.VideoDuration,
		VideoSizeBytes: req.VideoSizeBytes,
	}
	if req.VideoID != "" {
		id, err := parseJobID(req.VideoID, "videoId")
		if err != nil {
			return err
		}
		in.VideoID = &id
	}

	out, err := s.deps.Queue.Execute(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"jobId":   out.JobID,
		"status":  out.Status,
		"message": usecase.QueuedMessage,
	})
}

type processRequest struct {
	JobID string `json:"jobId"`
}

func (s *Server) processTranscription(c *fiber.Ctx) error {
	var req processRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	jobID, err := parseJobID(req.JobID, "jobId")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if s.deps.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.ProcessTimeout)
		defer cancel()
	}

	job, err := s.deps.Process.Execute(ctx, jobID)
	if err != nil {
		// The worker contract reports an unknown job as a processing failure.
		if errors.Is(err, entity.ErrJobNotFound) {
			return withStatus(http.StatusInternalServerError, err)
		}
		return err
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"jobId":         job.ID,
		"transcription": job.TranscriptionText,
		"language":      job.Language,
	})
}

type transcribeRequest struct {
	VideoURL string `json:"videoUrl"`
	JobID    string `json:"jobId"`
}

func (s *Server) transcribe(c *fiber.Ctx) error {
	var req transcribeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return fmt.Errorf("%w: videoUrl and jobId are required", entity.ErrInvalidRequest)
	}
	jobID, err := parseJobID(req.JobID, "jobId")
	if err != nil {
		return err
	}

	res, err := s.deps.Transcribe.Execute(c.UserContext(), req.VideoURL, jobID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"jobId":         jobID,
		"transcription": res.Transcript,
		"provider":      res.Provider,
		"transcript_id": res.ProviderJobID,
	})
}

type highlightsRequest struct {
	Transcription *entity.Transcript `json:"transcription"`
	JobID         string             `json:"jobId"`
}

func (s *Server) generateHighlights(c *fiber.Ctx) error {
	var req highlightsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Transcription == nil {
		return fmt.Errorf("%w: transcription is required", entity.ErrInvalidRequest)
	}

	var jobID *uuid.UUID
	if req.JobID != "" {
		id, err := parseJobID(req.JobID, "jobId")
		if err != nil {
			return err
		}
		jobID = &id
	}

	set, err := s.deps.Highlights.Execute(c.UserContext(), req.Transcription, jobID)
	if err != nil {
		return err
	}
	resp := fiber.Map{"success": true, "highlights": set}
	if jobID != nil {
		resp["jobId"] = jobID
	}
	return c.JSON(resp)
}

type backfillRequest struct {
	Limit  int    `json:"limit"`
	UserID string `json:"userId"`
}

func (s *Server) backfill(c *fiber.Ctx) error {
	var req backfillRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.Limit < 0 {
		return fmt.Errorf("%w: limit must be positive", entity.ErrInvalidRequest)
	}

	out, err := s.deps.Backfill.Execute(c.UserContext(), usecase.BackfillInput{Limit: req.Limit, UserID: req.UserID})
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"success":   true,
		"message":   out.Message,
		"processed": out.Processed,
		"created":   out.Created,
	}
	if out.JobIDs != nil {
		resp["jobs"] = out.JobIDs
	}
	return c.JSON(resp)
}

type jobResponse struct {
	ID                     uuid.UUID            `json:"id"`
	UserID                 string               `json:"user_id"`
	VideoID                *uuid.UUID           `json:"video_id"`
	VideoURL               string               `json:"video_url"`
	VideoDurationSeconds   *float64             `json:"video_duration_seconds"`
	VideoSizeBytes         *int64               `json:"video_size_bytes"`
	Status                 entity.JobStatus     `json:"status"`
	Transcription          *entity.Transcript   `json:"transcription"`
	TranscriptionText      string               `json:"transcription_text,omitempty"`
	Language               string               `json:"language,omitempty"`
	TranscriptHighlight    *entity.HighlightSet `json:"transcript_highlight"`
	Provider               string               `json:"provider,omitempty"`
	ErrorMessage           string               `json:"error_message,omitempty"`
	RetryCount             int                  `json:"retry_count"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
	TranscriptionStartedAt *time.Time           `json:"transcription_started_at"`
	CompletedAt            *time.Time           `json:"completed_at"`
}

func toJobResponse(j *entity.Job) jobResponse {
	return jobResponse{
		ID:                     j.ID,
		UserID:                 j.UserID,
		VideoID:                j.VideoID,
		VideoURL:               j.VideoURL,
		VideoDurationSeconds:   j.VideoDurationSeconds,
		VideoSizeBytes:         j.VideoSizeBytes,
		Status:                 j.Status,
		Transcription:          j.Transcription,
		TranscriptionText:      j.TranscriptionText,
		Language:               j.Language,
		TranscriptHighlight:    j.TranscriptHighlight,
		Provider:               j.Provider,
		ErrorMessage:           j.ErrorMessage,
		RetryCount:             j.RetryCount,
		CreatedAt:              j.CreatedAt,
		UpdatedAt:              j.UpdatedAt,
		TranscriptionStartedAt: j.TranscriptionStartedAt,
		CompletedAt:            j.CompletedAt,
	}
}

func (s *Server) getJob(c *fiber.Ctx) error {
	id, err := parseJobID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	job, err := s.deps.Jobs.Get(c.UserContext(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "job": toJobResponse(job)})
}

func (s *Server) listJobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	jobs, err := s.deps.Jobs.List(c.UserContext(), currentUser(c).ID, limit)
	if err != nil {
		return err
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return c.JSON(fiber.Map{"success": true, "jobs": out})
}

func (s *Server) retryJob(c *fiber.Ctx) error {
	id, err := parseJobID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	job, err := s.deps.Jobs.Retry(c.UserContext(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "jobId": job.ID, "status": job.Status})
}
