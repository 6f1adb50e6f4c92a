package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

type memRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job

	// beforeUpdate runs inside Update before the version check; tests use it
	// to simulate a concurrent writer.
	beforeUpdate func(job *entity.Job)
	updateErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[uuid.UUID]entity.Job{}}
}

func (r *memRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) Update(ctx context.Context, job *entity.Job, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook(job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.jobs[job.ID]
	if !ok {
		return entity.ErrJobNotFound
	}
	if stored.Version != expectedVersion {
		return entity.ErrJobConflict
	}
	job.Version = expectedVersion + 1
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return &j, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string, limit int) ([]*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Job
	for _, j := range r.jobs {
		if j.UserID == userID {
			j := j
			out = append(out, &j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// bump simulates another writer touching the row.
func (r *memRepo) bump(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	j.Version++
	r.jobs[id] = j
}

func (r *memRepo) get(id uuid.UUID) entity.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

type stubTranscriber struct {
	result *entity.TranscriptionResult
	err    error
	calls  int
	last   port.TranscriptionRequest
	onCall func()
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) Transcribe(_ context.Context, req port.TranscriptionRequest) (*entity.TranscriptionResult, error) {
	s.calls++
	s.last = req
	if s.onCall != nil {
		s.onCall()
	}
	return s.result, s.err
}

type stubHighlights struct {
	set    *entity.HighlightSet
	err    error
	onCall func()
}

func (s *stubHighlights) Generate(context.Context, *entity.Transcript) (*entity.HighlightSet, error) {
	if s.onCall != nil {
		s.onCall()
	}
	return s.set, s.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

type dlqEntry struct {
	body   []byte
	reason string
}

type recordingDLQ struct {
	entries []dlqEntry
	err     error
}

func (d *recordingDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	if d.err != nil {
		return d.err
	}
	d.entries = append(d.entries, dlqEntry{body: msg, reason: reason})
	return nil
}

type notification struct {
	to, jobID, videoURL, errorMsg string
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, to, jobID, videoURL, errorMsg string) error {
	n.sent = append(n.sent, notification{to: to, jobID: jobID, videoURL: videoURL, errorMsg: errorMsg})
	return nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type memMedia struct {
	videos   []*entity.MediaRecord
	withJobs map[uuid.UUID]bool
	err      error

	gotUserID string
	gotLimit  int
}

func (m *memMedia) ListVideos(_ context.Context, userID string, limit int) ([]*entity.MediaRecord, error) {
	m.gotUserID, m.gotLimit = userID, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.videos, nil
}

func (m *memMedia) VideoIDsWithJobs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if m.withJobs[id] {
			out[id] = true
		}
	}
	return out, nil
}

var errInfra = errors.New("connection reset")

func sampleResult() *entity.TranscriptionResult {
	return &entity.TranscriptionResult{
		Transcript: &entity.Transcript{
			Text:     "Bonjour tout le monde. Aujourd'hui j'ai couru.",
			Language: "fr",
			Duration: 6,
			Segments: []entity.Segment{
				{Start: 0, End: 2.5, Text: "Bonjour tout le monde."},
				{Start: 2.5, End: 6, Text: "Aujourd'hui j'ai couru."},
			},
			SegmentSource: entity.SegmentSourceProvider,
		},
		Provider:      "assemblyai",
		ProviderJobID: "tr_123",
	}
}
