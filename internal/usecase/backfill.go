package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

const (
	DefaultBackfillLimit     = 50
	backfillDispatchParallel = 8
)

type BackfillInput struct {
	Limit  int
	UserID string
}

type BackfillOutput struct {
	Message   string
	Processed int
	Created   int
	JobIDs    []uuid.UUID
}

// BackfillUseCase creates jobs for stored videos that were never transcribed.
type BackfillUseCase struct {
	media      port.MediaRepository
	repo       port.JobRepository
	dispatcher port.JobDispatcher
	mode       string
	publicBase string
	logger     *zap.Logger
}

func NewBackfillUseCase(
	media port.MediaRepository,
	repo port.JobRepository,
	dispatcher port.JobDispatcher,
	mode string,
	publicBase string,
	logger *zap.Logger,
) *BackfillUseCase {
	return &BackfillUseCase{
		media:      media,
		repo:       repo,
		dispatcher: dispatcher,
		mode:       mode,
		publicBase: publicBase,
		logger:     logger,
	}
}

func (uc *BackfillUseCase) Execute(ctx context.Context, in BackfillInput) (*BackfillOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	videos, err := uc.media.ListVideos(ctx, in.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if len(videos) == 0 {
		return &BackfillOutput{Message: "No videos to process"}, nil
	}

	ids := make([]uuid.UUID, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	existing, err := uc.media.VideoIDsWithJobs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing jobs: %w", err)
	}

	out := &BackfillOutput{Processed: len(videos), JobIDs: []uuid.UUID{}}
	for _, v := range videos {
		if existing[v.ID] {
			continue
		}

		videoID := v.ID
		job := entity.NewJob(v.UserID, uc.videoURL(v.FilePath))
		job.VideoID = &videoID
		job.VideoDurationSeconds = v.DurationSeconds

		if err := uc.repo.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("create transcription job for video %s: %w", v.ID, err)
		}
		out.JobIDs = append(out.JobIDs, job.ID)
	}
	out.Created = len(out.JobIDs)

	if out.Created == 0 {
		out.Message = "All videos already have transcription jobs"
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(backfillDispatchParallel)
	for _, id := range out.JobIDs {
		id := id
		g.Go(func() error {
			Dispatch(ctx, uc.dispatcher, uc.mode, id, uc.logger)
			return nil
		})
	}
	_ = g.Wait()

	out.Message = fmt.Sprintf("Created %d transcription jobs", out.Created)
	uc.logger.Info("backfill finished",
		zap.Int("processed", out.Processed),
		zap.Int("created", out.Created),
		zap.String("user_id", in.UserID),
	)
	return out, nil
}

func (uc *BackfillUseCase) videoURL(filePath string) string {
	return strings.TrimRight(uc.publicBase, "/") + "/" + strings.TrimLeft(filePath, "/")
}
