// Package app builds the components shared by the api and worker binaries
// from configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/highlight"
	"github.com/momentumjournal/transcription-service/internal/infra/config"
	"github.com/momentumjournal/transcription-service/internal/infra/ffmpeg"
	"github.com/momentumjournal/transcription-service/internal/retry"
	"github.com/momentumjournal/transcription-service/internal/transcribe"
)

func RetryOptions(cfg *config.Config) retry.Options {
	return retry.Options{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialDelay:      cfg.RetryInitialDelay,
		MaxDelay:          cfg.RetryMaxDelay,
		BackoffMultiplier: cfg.RetryMultiplier,
		Prober:            retry.NewDialProber(cfg.NetworkProbeAddr),
	}
}

// NewTranscriber builds the configured primary provider, wrapped in a
// fallback chain when FALLBACK_PROVIDER names a different one.
func NewTranscriber(cfg *config.Config, storage port.MediaStorage, chunks port.ChunkRecorder, log *zap.Logger) (port.Transcriber, error) {
	resolver := transcribe.NewMediaResolver(storage, cfg.MediaPublicBaseURL, cfg.MinIOMediaBucket, cfg.SignedURLTTL)
	opts := RetryOptions(cfg)

	build := func(name string) (port.Transcriber, error) {
		switch name {
		case transcribe.ProviderAssemblyAI:
			return transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{
				APIKey:          cfg.AssemblyAIAPIKey,
				BaseURL:         cfg.AssemblyAIBaseURL,
				Language:        cfg.TranscriptionLanguage,
				PollInterval:    cfg.PollInterval,
				PollMaxAttempts: cfg.PollMaxAttempts,
				Timeout:         cfg.HTTPClientTimeout,
				Retry:           opts,
			}, resolver, log), nil
		case transcribe.ProviderWhisper:
			return transcribe.NewWhisper(transcribe.WhisperConfig{
				APIKey:        cfg.OpenAIAPIKey,
				BaseURL:       cfg.OpenAIBaseURL,
				Model:         cfg.WhisperModel,
				Language:      cfg.TranscriptionLanguage,
				MaxBytes:      cfg.WhisperMaxBytes,
				Parallel:      cfg.WhisperChunkParallel,
				TempDir:       cfg.TempDir,
				UploadTimeout: cfg.UploadTimeout,
				Retry:         opts,
			}, resolver, storage, ffmpeg.NewExtractor(cfg.FFmpegBin, cfg.FFprobeBin, log), chunks, log), nil
		}
		return nil, fmt.Errorf("unknown transcription provider %q", name)
	}

	primary, err := build(cfg.TranscriptionProvider)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackProvider == "" || cfg.FallbackProvider == cfg.TranscriptionProvider {
		return primary, nil
	}
	fallback, err := build(cfg.FallbackProvider)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return transcribe.NewChain(primary, fallback, log), nil
}

func NewHighlightGenerator(cfg *config.Config, log *zap.Logger) *highlight.Generator {
	temperature := cfg.HighlightTemperature
	return highlight.NewGenerator(highlight.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.HighlightModel,
		Temperature: &temperature,
		Timeout:     cfg.HTTPClientTimeout,
		Retry:       RetryOptions(cfg),
	}, log)
}
