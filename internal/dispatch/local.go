// Package dispatch runs transcription jobs inside the API process when no
// broker is configured.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("dispatcher closed")

// Processor runs one job to a terminal state.
type Processor func(ctx context.Context, jobID uuid.UUID) error

type Result struct {
	JobID uuid.UUID
	Err   error
}

// Local runs at most limit jobs at a time on goroutines owned by the
// dispatcher. Jobs outlive the request that dispatched them and stop only
// when the base context is cancelled or Close gives up draining.
type Local struct {
	base    context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	process Processor
	results chan Result
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocal(base context.Context, limit int, process Processor, logger *zap.Logger) *Local {
	if limit < 1 {
		limit = 1
	}
	base, cancel := context.WithCancel(base)
	return &Local{
		base:    base,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(int64(limit)),
		process: process,
		results: make(chan Result, limit*4),
		logger:  logger,
	}
}

func (l *Local) Dispatch(_ context.Context, jobID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := l.base.Err(); err != nil {
		return err
	}

	l.wg.Add(1)
	go l.run(jobID)
	return nil
}

func (l *Local) run(jobID uuid.UUID) {
	defer l.wg.Done()
	log := l.logger.With(zap.String("job_id", jobID.String()))

	if err := l.sem.Acquire(l.base, 1); err != nil {
		log.Warn("job not started before shutdown", zap.Error(err))
		l.report(Result{JobID: jobID, Err: err})
		return
	}
	defer l.sem.Release(1)

	err := l.process(l.base, jobID)
	if err != nil {
		log.Warn("local job finished with error", zap.Error(err))
	} else {
		log.Debug("local job finished")
	}
	l.report(Result{JobID: jobID, Err: err})
}

// report never blocks; results are dropped when nobody drains the channel.
func (l *Local) report(r Result) {
	select {
	case l.results <- r:
	default:
	}
}

// Results streams the outcome of each dispatched job.
func (l *Local) Results() <-chan Result {
	return l.results
}

// Close stops accepting jobs and waits for running ones. When ctx is done
// first, running jobs are cancelled and ctx's error is returned once they
// have stopped.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.logger.Warn("local dispatch drain timed out, cancelling running jobs")
		l.cancel()
		<-drained
		return ctx.Err()
	}
}
