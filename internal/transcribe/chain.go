package transcribe

import (
	"context"
	"fmt"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"go.uber.org/zap"
)

// Chain tries the primary provider and falls back to the secondary one on
// any error. Both failures are reported when the fallback fails too.
type Chain struct {
	primary  port.Transcriber
	fallback port.Transcriber
	logger   *zap.Logger
}

func NewChain(primary, fallback port.Transcriber, logger *zap.Logger) *Chain {
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

func (c *Chain) Name() string {
	if c.fallback == nil {
		return c.primary.Name()
	}
	return c.primary.Name() + "+" + c.fallback.Name()
}

func (c *Chain) Transcribe(ctx context.Context, req port.TranscriptionRequest) (*entity.TranscriptionResult, error) {
	result, err := c.primary.Transcribe(ctx, req)
	if err == nil {
		return result, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", c.primary.Name(), err)
	}

	c.logger.Warn("primary transcription provider failed, trying fallback",
		zap.String("job_id", req.JobID.String()),
		zap.String("primary", c.primary.Name()),
		zap.String("fallback", c.fallback.Name()),
		zap.Error(err),
	)

	result, fbErr := c.fallback.Transcribe(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("%s failed: %w; fallback %s also failed: %w",
			c.primary.Name(), err, c.fallback.Name(), fbErr)
	}
	return result, nil
}
