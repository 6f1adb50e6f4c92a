// Package apiclient holds the JSON-over-HTTP plumbing shared by the
// provider, LLM and auth clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
	"github.com/momentumjournal/transcription-service/internal/retry"
	"go.uber.org/zap"
)

// WithRetryHook logs and counts every retry of operation.
func WithRetryHook(opts retry.Options, operation string, log *zap.Logger) retry.Options {
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RetryTotal.WithLabelValues(operation).Inc()
		log.Warn("retrying outbound call",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return opts
}

// DoJSON sends body (if any) as JSON and decodes a 2xx response into out.
// Non-2xx responses come back as *retry.StatusError; encode and decode
// failures are marked permanent.
func DoJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := retry.CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := DecodeJSON(resp.Body, out); err != nil {
		return retry.Permanent(err)
	}
	return nil
}

func DecodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
