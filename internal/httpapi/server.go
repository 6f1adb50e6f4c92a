// Package httpapi exposes the transcription endpoints over fiber.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/usecase"
)

type JobQueuer interface {
	Execute(ctx context.Context, in usecase.QueueTranscriptionInput) (*usecase.QueueTranscriptionOutput, error)
}

type JobProcessor interface {
	Execute(ctx context.Context, jobID uuid.UUID) (*entity.Job, error)
}

type DirectTranscriber interface {
	Execute(ctx context.Context, videoURL string, jobID uuid.UUID) (*entity.TranscriptionResult, error)
}

type HighlightService interface {
	Execute(ctx context.Context, transcript *entity.Transcript, jobID *uuid.UUID) (*entity.HighlightSet, error)
}

type Backfiller interface {
	Execute(ctx context.Context, in usecase.BackfillInput) (*usecase.BackfillOutput, error)
}

type JobService interface {
	Get(ctx context.Context, userID string, jobID uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, userID string, limit int) ([]*entity.Job, error)
	Retry(ctx context.Context, userID string, jobID uuid.UUID) (*entity.Job, error)
}

type Deps struct {
	Queue      JobQueuer
	Process    JobProcessor
	Transcribe DirectTranscriber
	Highlights HighlightService
	Backfill   Backfiller
	Jobs       JobService
	Verifier   port.TokenVerifier
	ServiceKey string
	// ProcessTimeout bounds the synchronous worker endpoint.
	ProcessTimeout time.Duration
	Logger         *zap.Logger
}

type Server struct {
	deps Deps
	log  *zap.Logger
}

func New(deps Deps) *fiber.App {
	s := &Server{deps: deps, log: deps.Logger}

	app := fiber.New(fiber.Config{
		AppName:               "journal-transcription-service",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
		ReadTimeout:           30 * time.Second,
	})
	app.Use(s.requestLogger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	fn := app.Group("/functions/v1")
	fn.Post("/queue-transcription", s.requireUser, s.queueTranscription)
	fn.Post("/process-transcription", s.requireServiceKey, s.processTranscription)
	fn.Post("/transcribe", s.requireServiceKey, s.transcribe)
	fn.Post("/generate-highlights", s.requireServiceKey, s.generateHighlights)
	fn.Post("/backfill-transcription-jobs", s.requireServiceKey, s.backfill)

	jobs := app.Group("/v1/jobs", s.requireUser)
	jobs.Get("/", s.listJobs)
	jobs.Get("/:id", s.getJob)
	jobs.Post("/:id/retry", s.retryJob)

	return app
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}
