package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/momentumjournal/transcription-service/internal/apiclient"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
	"github.com/momentumjournal/transcription-service/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ProviderWhisper = "whisper"

type WhisperConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Language      string
	MaxBytes      int64
	Parallel      int
	TempDir       string
	UploadTimeout time.Duration
	Retry         retry.Options
}

// Whisper downloads the media, extracts its audio track and uploads it to
// the OpenAI transcription endpoint, splitting inputs larger than MaxBytes.
type Whisper struct {
	cfg       WhisperConfig
	client    *http.Client
	resolver  *MediaResolver
	storage   port.MediaStorage
	extractor port.AudioExtractor
	chunks    port.ChunkRecorder
	logger    *zap.Logger
}

func NewWhisper(
	cfg WhisperConfig,
	resolver *MediaResolver,
	storage port.MediaStorage,
	extractor port.AudioExtractor,
	chunks port.ChunkRecorder,
	logger *zap.Logger,
) *Whisper {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 25 * 1024 * 1024
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 10 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Whisper{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.UploadTimeout},
		resolver:  resolver,
		storage:   storage,
		extractor: extractor,
		chunks:    chunks,
		logger:    logger.With(zap.String("provider", ProviderWhisper)),
	}
}

func (w *Whisper) Name() string { return ProviderWhisper }

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (r *whisperResponse) toChunk() chunkTranscript {
	c := chunkTranscript{Text: r.Text, Language: r.Language, Duration: r.Duration}
	for _, s := range r.Segments {
		c.Segments = append(c.Segments, entity.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return c
}

func (w *Whisper) Transcribe(ctx context.Context, req port.TranscriptionRequest) (*entity.TranscriptionResult, error) {
	log := w.logger.With(zap.String("job_id", req.JobID.String()))

	if err := os.MkdirAll(w.cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(w.cfg.TempDir, "whisper-"+req.JobID.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input")
	if err := w.fetch(ctx, req.MediaURL, inputPath, log); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderWhisper, "submit_error").Inc()
		return nil, fmt.Errorf("%w: fetch media: %w", entity.ErrProviderSubmit, err)
	}

	audioPath := inputPath
	if w.extractor != nil {
		audioPath = filepath.Join(workDir, "audio.mp3")
		if err := w.extractor.ExtractAudio(ctx, inputPath, audioPath); err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(ProviderWhisper, "error").Inc()
			return nil, fmt.Errorf("%w: extract audio: %w", entity.ErrProviderProcessing, err)
		}
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat audio: %w", entity.ErrProviderProcessing, err)
	}
	if req.SizeHint <= 0 {
		if in, err := os.Stat(inputPath); err == nil {
			req.SizeHint = in.Size()
		}
	}

	var transcript *entity.Transcript
	if info.Size() <= w.cfg.MaxBytes {
		resp, err := w.transcribeFile(ctx, audioPath, log)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(ProviderWhisper, "submit_error").Inc()
			return nil, fmt.Errorf("%w: %w", entity.ErrProviderSubmit, err)
		}
		chunk := resp.toChunk()
		transcript = &entity.Transcript{
			Text:     chunk.Text,
			Language: chunk.Language,
			Duration: chunk.Duration,
			Segments: chunk.Segments,
		}
	} else {
		log.Info("audio above upload ceiling, transcribing in chunks",
			zap.Int64("size_bytes", info.Size()),
			zap.Int64("max_bytes", w.cfg.MaxBytes),
		)
		transcript, err = w.transcribeChunked(ctx, req, audioPath, filepath.Join(workDir, "chunks"), log)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(ProviderWhisper, "error").Inc()
			return nil, fmt.Errorf("%w: %w", entity.ErrProviderProcessing, err)
		}
	}

	if w.cfg.Language != "" {
		transcript.Language = w.cfg.Language
	}
	finalize(transcript, w.cfg.Language, req)
	metrics.ProviderRequestsTotal.WithLabelValues(ProviderWhisper, "completed").Inc()

	log.Info("transcript completed",
		zap.Int("segments", len(transcript.Segments)),
		zap.Int("chunks", transcript.Chunks),
		zap.String("segment_source", string(transcript.SegmentSource)),
	)

	return &entity.TranscriptionResult{Transcript: transcript, Provider: ProviderWhisper}, nil
}

func (w *Whisper) transcribeChunked(ctx context.Context, req port.TranscriptionRequest, audioPath, dir string, log *zap.Logger) (*entity.Transcript, error) {
	paths, err := SplitFile(audioPath, dir, w.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	parts := make([]chunkTranscript, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Parallel)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			chunk := &entity.Chunk{JobID: req.JobID, Index: i, CreatedAt: time.Now().UTC()}
			if info, err := os.Stat(path); err == nil {
				chunk.SizeBytes = info.Size()
			}

			resp, err := w.transcribeFile(gctx, path, log.With(zap.Int("chunk", i)))
			if err != nil {
				metrics.ChunksTranscribedTotal.WithLabelValues(string(entity.ChunkStatusFailed)).Inc()
				chunk.Status = entity.ChunkStatusFailed
				chunk.ErrorMessage = err.Error()
				w.recordChunk(ctx, chunk, log)
				return fmt.Errorf("chunk %d: %w", i, err)
			}

			part := resp.toChunk()
			chunk.Status = entity.ChunkStatusCompleted
			chunk.Text = part.Text
			chunk.DurationSeconds = part.Duration
			if err := w.chunks.SaveChunk(gctx, chunk); err != nil {
				return fmt.Errorf("record chunk %d: %w", i, err)
			}
			metrics.ChunksTranscribedTotal.WithLabelValues(string(entity.ChunkStatusCompleted)).Inc()
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeChunks(parts), nil
}

func (w *Whisper) recordChunk(ctx context.Context, chunk *entity.Chunk, log *zap.Logger) {
	if err := w.chunks.SaveChunk(ctx, chunk); err != nil {
		log.Warn("failed to record chunk", zap.Int("chunk", chunk.Index), zap.Error(err))
	}
}

func (w *Whisper) transcribeFile(ctx context.Context, path string, log *zap.Logger) (*whisperResponse, error) {
	opts := apiclient.WithRetryHook(w.cfg.Retry, "whisper_upload", log)
	return retry.Run(ctx, opts, func(ctx context.Context) (*whisperResponse, error) {
		body, contentType, err := w.multipartBody(path)
		if err != nil {
			return nil, retry.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/v1/audio/transcriptions", body)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		httpReq.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
		httpReq.Header.Set("Content-Type", contentType)

		resp, err := w.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
		}
		defer resp.Body.Close()
		if err := retry.CheckResponse(resp); err != nil {
			return nil, err
		}

		var out whisperResponse
		if err := apiclient.DecodeJSON(resp.Body, &out); err != nil {
			return nil, retry.Permanent(err)
		}
		return &out, nil
	})
}

func (w *Whisper) multipartBody(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := filepath.Base(path)
	if filepath.Ext(name) == "" {
		name += ".mp3"
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}
	fields := map[string]string{
		"model":                     w.cfg.Model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if w.cfg.Language != "" {
		fields["language"] = w.cfg.Language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// fetch copies the media to dest, from the bucket when the URL points into
// it and over HTTP otherwise.
func (w *Whisper) fetch(ctx context.Context, mediaURL, dest string, log *zap.Logger) error {
	key, managed, err := w.resolver.ObjectKey(mediaURL)
	if err != nil {
		return err
	}
	if managed {
		log.Debug("downloading media from storage", zap.String("object_key", key))
		return w.storage.DownloadObject(ctx, key, dest)
	}

	opts := apiclient.WithRetryHook(w.cfg.Retry, "media_download", log)
	_, err = retry.Run(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.download(ctx, mediaURL, dest)
	})
	return err
}

func (w *Whisper) download(ctx context.Context, mediaURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if err := retry.CheckResponse(resp); err != nil {
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create %s: %w", filepath.Base(dest), err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write media: %w", err)
	}
	return f.Close()
}
