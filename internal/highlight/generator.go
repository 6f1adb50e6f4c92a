// Package highlight asks an LLM for the notable moments of a transcript.
package highlight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/momentumjournal/transcription-service/internal/apiclient"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/retry"
	"go.uber.org/zap"
)

const instructions = `You analyse transcripts of personal video journal entries.
Return a JSON object with a "highlights" array. Each highlight has:
- "title": a short title in the language of the transcript
- "importance": an integer from 1 (minor) to 10 (life-changing)
- "summary": one or two sentences describing the moment
- "start" and "end": the time range in seconds when timestamps are given
- "category": one of emotion, achievement, relationship, reflection, plan, other
Only return the JSON object.`

const DefaultTemperature = 0.3

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Temperature defaults to DefaultTemperature when nil; zero is a valid setting.
	Temperature *float64
	Timeout     time.Duration
	Retry       retry.Options
}

type Generator struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-nano"
	}
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type responsesRequest struct {
	Model        string         `json:"model"`
	Instructions string         `json:"instructions"`
	Input        string         `json:"input"`
	Temperature  float64        `json:"temperature"`
	Text         responseFormat `json:"text"`
}

type responseFormat struct {
	Format struct {
		Type string `json:"type"`
	} `json:"format"`
}

type responsesResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// TranscriptContent renders a transcript the way it is shown to the model:
// one "[start s-end s] text" line per segment, or the plain text when there are none.
func TranscriptContent(t *entity.Transcript) string {
	if t == nil {
		return ""
	}
	if len(t.Segments) == 0 {
		return t.Text
	}
	var b strings.Builder
	for i, s := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%ss-%ss] %s", formatSeconds(s.Start), formatSeconds(s.End), s.Text)
	}
	return b.String()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (g *Generator) Generate(ctx context.Context, t *entity.Transcript) (*entity.HighlightSet, error) {
	content := TranscriptContent(t)
	if strings.TrimSpace(content) == "" {
		return nil, entity.ErrEmptyTranscript
	}

	req := responsesRequest{
		Model:        g.cfg.Model,
		Instructions: instructions,
		Input:        content,
		Temperature:  *g.cfg.Temperature,
	}
	req.Text.Format.Type = "json_object"

	headers := map[string]string{"Authorization": "Bearer " + g.cfg.APIKey}
	opts := apiclient.WithRetryHook(g.cfg.Retry, "highlights", g.logger)
	resp, err := retry.Run(ctx, opts, func(ctx context.Context) (*responsesResponse, error) {
		var out responsesResponse
		if err := apiclient.DoJSON(ctx, g.client, http.MethodPost, g.cfg.BaseURL+"/v1/responses", headers, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("highlight request: %w", err)
	}

	text, err := outputText(resp)
	if err != nil {
		return nil, err
	}

	var set entity.HighlightSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidHighlightSchema, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	set.GeneratedAt = g.now()
	set.TranscriptLength = utf8.RuneCountInString(content)
	set.SegmentsAnalyzed = len(t.Segments)

	g.logger.Debug("highlights generated",
		zap.Int("highlights", len(set.Highlights)),
		zap.Int("transcript_length", set.TranscriptLength),
	)
	return &set, nil
}

// outputText returns the first text part of the first output message.
func outputText(resp *responsesResponse) (string, error) {
	for _, item := range resp.Output {
		for _, c := range item.Content {
			if c.Text != "" {
				return c.Text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: response has no output text", entity.ErrInvalidHighlightSchema)
}
