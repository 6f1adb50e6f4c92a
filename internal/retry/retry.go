// Package retry wraps outbound calls with exponential backoff. Client errors
// (4xx) and permanent errors stop immediately; everything else is retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

var ErrNetworkUnavailable = errors.New("network unavailable")

type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Prober is consulted before every attempt after the first. Nil skips the check.
	Prober Prober
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

type Result[T any] struct {
	Success  bool
	Data     T
	Err      error
	Attempts int
}

// StatusError carries the HTTP status of a failed call so the retry loop can
// tell client errors from server errors.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return false
		}
	}
	return true
}

// Delay returns the wait before the attempt following attemptIndex (0-based).
func (o Options) Delay(attemptIndex int) time.Duration {
	mult := o.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(o.InitialDelay) * math.Pow(mult, float64(attemptIndex)))
	if o.MaxDelay > 0 && d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, returns a non-retryable error, or MaxAttempts
// is reached. A failed network probe consumes an attempt without calling op.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var res Result[T]
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res.Attempts = attempt

		if attempt > 1 && opts.Prober != nil && !opts.Prober.Available(ctx) {
			res.Err = ErrNetworkUnavailable
		} else {
			data, err := op(ctx)
			if err == nil {
				res.Success = true
				res.Data = data
				res.Err = nil
				return res
			}
			res.Err = err
			if !IsRetryable(err) {
				return res
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}

		delay := opts.Delay(attempt - 1)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, res.Err)
		}
		if err := Sleep(ctx, delay); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

// Run is Do for callers that only care about the value and the last error.
func Run[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	res := Do(ctx, opts, op)
	if !res.Success {
		return res.Data, fmt.Errorf("after %d attempt(s): %w", res.Attempts, res.Err)
	}
	return res.Data, nil
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CheckResponse turns a non-2xx response into a *StatusError carrying the
// start of the body. The body is consumed in that case.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
