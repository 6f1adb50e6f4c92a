package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/momentumjournal/transcription-service/internal/apiclient"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
	"github.com/momentumjournal/transcription-service/internal/retry"
	"go.uber.org/zap"
)

const ProviderAssemblyAI = "assemblyai"

type AssemblyAIConfig struct {
	APIKey          string
	BaseURL         string
	Language        string
	PollInterval    time.Duration
	PollMaxAttempts int
	Timeout         time.Duration
	Retry           retry.Options
}

// AssemblyAI submits a media URL to AssemblyAI and polls until the
// transcript settles. The media itself never passes through this process.
type AssemblyAI struct {
	cfg      AssemblyAIConfig
	client   *http.Client
	resolver *MediaResolver
	logger   *zap.Logger
}

func NewAssemblyAI(cfg AssemblyAIConfig, resolver *MediaResolver, logger *zap.Logger) *AssemblyAI {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AssemblyAI{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		resolver: resolver,
		logger:   logger.With(zap.String("provider", ProviderAssemblyAI)),
	}
}

func (a *AssemblyAI) Name() string { return ProviderAssemblyAI }

type assemblySubmitRequest struct {
	AudioURL     string `json:"audio_url"`
	SpeechModel  string `json:"speech_model"`
	LanguageCode string `json:"language_code,omitempty"`
	Punctuate    bool   `json:"punctuate"`
	FormatText   bool   `json:"format_text"`
	DualChannel  bool   `json:"dual_channel"`
}

type assemblyTranscript struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error"`
	Text          string      `json:"text"`
	LanguageCode  string      `json:"language_code"`
	AudioDuration float64     `json:"audio_duration"`
	Confidence    float64     `json:"confidence"`
	Words         []timedWord `json:"words"`
}

func (a *AssemblyAI) Transcribe(ctx context.Context, req port.TranscriptionRequest) (*entity.TranscriptionResult, error) {
	log := a.logger.With(zap.String("job_id", req.JobID.String()))

	audioURL, err := a.resolver.AccessibleURL(ctx, req.MediaURL)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderAssemblyAI, "submit_error").Inc()
		return nil, fmt.Errorf("%w: %w", entity.ErrProviderSubmit, err)
	}

	id, err := a.submit(ctx, audioURL, log)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderAssemblyAI, "submit_error").Inc()
		return nil, fmt.Errorf("%w: %w", entity.ErrProviderSubmit, err)
	}
	log = log.With(zap.String("transcript_id", id))
	log.Info("transcript submitted")

	result, attempts, err := a.poll(ctx, id, log)
	metrics.ProviderPollAttempts.WithLabelValues(ProviderAssemblyAI).Observe(float64(attempts))
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(ProviderAssemblyAI, "error").Inc()
		return nil, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues(ProviderAssemblyAI, "completed").Inc()

	transcript := &entity.Transcript{
		Text:       result.Text,
		Language:   result.LanguageCode,
		Duration:   result.AudioDuration,
		Confidence: result.Confidence,
		Segments:   groupWords(result.Words),
	}
	finalize(transcript, a.cfg.Language, req)

	log.Info("transcript completed",
		zap.Int("polls", attempts),
		zap.Int("segments", len(transcript.Segments)),
		zap.String("segment_source", string(transcript.SegmentSource)),
	)

	return &entity.TranscriptionResult{
		Transcript:    transcript,
		Provider:      ProviderAssemblyAI,
		ProviderJobID: id,
	}, nil
}

func (a *AssemblyAI) headers() map[string]string {
	return map[string]string{"Authorization": a.cfg.APIKey}
}

func (a *AssemblyAI) submit(ctx context.Context, audioURL string, log *zap.Logger) (string, error) {
	body := assemblySubmitRequest{
		AudioURL:     audioURL,
		SpeechModel:  "universal",
		LanguageCode: a.cfg.Language,
		Punctuate:    true,
		FormatText:   true,
		DualChannel:  false,
	}

	opts := apiclient.WithRetryHook(a.cfg.Retry, "assemblyai_submit", log)
	out, err := retry.Run(ctx, opts, func(ctx context.Context) (*assemblyTranscript, error) {
		var out assemblyTranscript
		if err := apiclient.DoJSON(ctx, a.client, http.MethodPost, a.cfg.BaseURL+"/v2/transcript", a.headers(), body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("submit response has no transcript id")
	}
	return out.ID, nil
}

// poll waits PollInterval before each status check and gives up after
// PollMaxAttempts checks. It returns the number of checks made.
func (a *AssemblyAI) poll(ctx context.Context, id string, log *zap.Logger) (*assemblyTranscript, int, error) {
	opts := apiclient.WithRetryHook(a.cfg.Retry, "assemblyai_poll", log)

	for attempt := 1; attempt <= a.cfg.PollMaxAttempts; attempt++ {
		if err := retry.Sleep(ctx, a.cfg.PollInterval); err != nil {
			return nil, attempt - 1, fmt.Errorf("poll transcript %s: %w", id, err)
		}

		status, err := retry.Run(ctx, opts, func(ctx context.Context) (*assemblyTranscript, error) {
			var out assemblyTranscript
			if err := apiclient.DoJSON(ctx, a.client, http.MethodGet, a.cfg.BaseURL+"/v2/transcript/"+id, a.headers(), nil, &out); err != nil {
				return nil, err
			}
			return &out, nil
		})
		if err != nil {
			return nil, attempt, fmt.Errorf("%w: status check for %s: %w", entity.ErrProviderProcessing, id, err)
		}

		log.Debug("transcript status", zap.Int("attempt", attempt), zap.String("status", status.Status))

		switch status.Status {
		case "completed":
			return status, attempt, nil
		case "error":
			msg := status.Error
			if msg == "" {
				msg = "provider reported an error without details"
			}
			return nil, attempt, fmt.Errorf("%w: %s", entity.ErrProviderProcessing, msg)
		}
	}

	return nil, a.cfg.PollMaxAttempts, fmt.Errorf("%w: transcript %s did not complete after %d polls",
		entity.ErrProviderPollTimeout, id, a.cfg.PollMaxAttempts)
}
