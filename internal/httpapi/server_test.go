package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/usecase"
)

const serviceKey = "service-secret"

type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(_ context.Context, token string) (*port.AuthUser, error) {
	switch token {
	case "alice-token":
		return &port.AuthUser{ID: "alice", Email: "alice@example.com"}, nil
	case "auth-down":
		return nil, fmt.Errorf("verify token: dial tcp: connection refused")
	}
	return nil, entity.ErrUnauthorized
}

type fakeQueue struct {
	got usecase.QueueTranscriptionInput
	out *usecase.QueueTranscriptionOutput
	err error
}

func (f *fakeQueue) Execute(_ context.Context, in usecase.QueueTranscriptionInput) (*usecase.QueueTranscriptionOutput, error) {
	f.got = in
	return f.out, f.err
}

type fakeProcess struct {
	job *entity.Job
	err error
}

func (f *fakeProcess) Execute(context.Context, uuid.UUID) (*entity.Job, error) {
	return f.job, f.err
}

type fakeTranscribe struct {
	res *entity.TranscriptionResult
	err error
}

func (f *fakeTranscribe) Execute(context.Context, string, uuid.UUID) (*entity.TranscriptionResult, error) {
	return f.res, f.err
}

type fakeHighlights struct {
	set   *entity.HighlightSet
	err   error
	jobID *uuid.UUID
}

func (f *fakeHighlights) Execute(_ context.Context, _ *entity.Transcript, jobID *uuid.UUID) (*entity.HighlightSet, error) {
	f.jobID = jobID
	return f.set, f.err
}

type fakeBackfill struct {
	got usecase.BackfillInput
	out *usecase.BackfillOutput
}

func (f *fakeBackfill) Execute(_ context.Context, in usecase.BackfillInput) (*usecase.BackfillOutput, error) {
	f.got = in
	return f.out, nil
}

type fakeJobs struct {
	jobs map[uuid.UUID]*entity.Job
}

func (f *fakeJobs) Get(_ context.Context, userID string, id uuid.UUID) (*entity.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	if j.UserID != userID {
		return nil, entity.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobs) List(_ context.Context, userID string, _ int) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) Retry(ctx context.Context, userID string, id uuid.UUID) (*entity.Job, error) {
	j, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if j.Status == entity.JobStatusPending {
		return j, nil
	}
	if err := j.Requeue(time.Now()); err != nil {
		return nil, err
	}
	return j, nil
}

type harness struct {
	app        *fiber.App
	queue      *fakeQueue
	process    *fakeProcess
	transcribe *fakeTranscribe
	highlights *fakeHighlights
	backfill   *fakeBackfill
	jobs       *fakeJobs
}

func newHarness() *harness {
	h := &harness{
		queue:      &fakeQueue{},
		process:    &fakeProcess{},
		transcribe: &fakeTranscribe{},
		highlights: &fakeHighlights{},
		backfill:   &fakeBackfill{},
		jobs:       &fakeJobs{jobs: map[uuid.UUID]*entity.Job{}},
	}
	h.app = New(Deps{
		Queue:      h.queue,
		Process:    h.process,
		Transcribe: h.transcribe,
		Highlights: h.highlights,
		Backfill:   h.backfill,
		Jobs:       h.jobs,
		Verifier:   fakeVerifier{},
		ServiceKey: serviceKey,
		Logger:     zap.NewNop(),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestQueueTranscription(t *testing.T) {
	h := newHarness()
	jobID := uuid.New()
	h.queue.out = &usecase.QueueTranscriptionOutput{JobID: jobID, Status: entity.JobStatusPending}

	videoID := uuid.New()
	code, body := h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "alice-token",
		fmt.Sprintf(`{"videoUrl":"https://cdn/v.mp4","videoDuration":12.5,"videoSizeBytes":1024,"videoId":%q}`, videoID))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, jobID.String(), body["jobId"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Transcription queued successfully", body["message"])

	assert.Equal(t, "alice", h.queue.got.UserID)
	assert.Equal(t, "alice@example.com", h.queue.got.UserEmail)
	require.NotNil(t, h.queue.got.VideoID)
	assert.Equal(t, videoID, *h.queue.got.VideoID)
	assert.Equal(t, 12.5, *h.queue.got.VideoDuration)
}

func TestQueueTranscriptionErrors(t *testing.T) {
	h := newHarness()

	code, body := h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "", `{"videoUrl":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])

	code, _ = h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "bad-token", `{"videoUrl":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "auth-down", `{"videoUrl":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, code)

	h.queue.err = fmt.Errorf("%w: videoUrl is required", entity.ErrInvalidRequest)
	code, body = h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "alice-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "videoUrl is required")

	code, _ = h.do(t, http.MethodPost, "/functions/v1/queue-transcription", "alice-token", `{"videoUrl":"x","videoId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServiceKeyRequired(t *testing.T) {
	h := newHarness()
	for _, path := range []string{
		"/functions/v1/process-transcription",
		"/functions/v1/transcribe",
		"/functions/v1/generate-highlights",
		"/functions/v1/backfill-transcription-jobs",
	} {
		code, _ := h.do(t, http.MethodPost, path, "alice-token", `{}`)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/backfill-transcription-jobs", nil)
	req.Header.Set("apikey", serviceKey)
	h.backfill.out = &usecase.BackfillOutput{Message: "No videos to process"}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProcessTranscription(t *testing.T) {
	h := newHarness()
	job := &entity.Job{ID: uuid.New(), TranscriptionText: "bonjour", Language: "fr"}
	h.process.job = job

	code, body := h.do(t, http.MethodPost, "/functions/v1/process-transcription", serviceKey,
		fmt.Sprintf(`{"jobId":%q}`, job.ID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bonjour", body["transcription"])
	assert.Equal(t, "fr", body["language"])

	code, body = h.do(t, http.MethodPost, "/functions/v1/process-transcription", serviceKey, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "jobId is required")

	h.process.job = nil
	h.process.err = fmt.Errorf("load job: %w", entity.ErrJobNotFound)
	code, _ = h.do(t, http.MethodPost, "/functions/v1/process-transcription", serviceKey,
		fmt.Sprintf(`{"jobId":%q}`, uuid.New()))
	assert.Equal(t, http.StatusInternalServerError, code)

	h.process.err = fmt.Errorf("claim job: %w", entity.ErrJobConflict)
	code, _ = h.do(t, http.MethodPost, "/functions/v1/process-transcription", serviceKey,
		fmt.Sprintf(`{"jobId":%q}`, uuid.New()))
	assert.Equal(t, http.StatusConflict, code)

	h.process.err = &usecase.JobFailedError{Job: &entity.Job{ID: uuid.New()}, Cause: entity.ErrProviderPollTimeout}
	code, body = h.do(t, http.MethodPost, "/functions/v1/process-transcription", serviceKey,
		fmt.Sprintf(`{"jobId":%q}`, uuid.New()))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "timeout")
}

func TestTranscribe(t *testing.T) {
	h := newHarness()
	h.transcribe.res = &entity.TranscriptionResult{
		Transcript:    &entity.Transcript{Text: "salut", Language: "fr", Segments: []entity.Segment{{Start: 0, End: 1, Text: "salut"}}},
		Provider:      "assemblyai",
		ProviderJobID: "tr_9",
	}
	jobID := uuid.New()

	code, body := h.do(t, http.MethodPost, "/functions/v1/transcribe", serviceKey,
		fmt.Sprintf(`{"videoUrl":"https://cdn/v.mp4","jobId":%q}`, jobID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "assemblyai", body["provider"])
	assert.Equal(t, "tr_9", body["transcript_id"])
	tr, ok := body["transcription"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "salut", tr["text"])

	code, _ = h.do(t, http.MethodPost, "/functions/v1/transcribe", serviceKey, fmt.Sprintf(`{"jobId":%q}`, jobID))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGenerateHighlights(t *testing.T) {
	h := newHarness()
	h.highlights.set = &entity.HighlightSet{
		Highlights:       []entity.Highlight{{Title: "Run", Importance: 8}},
		SegmentsAnalyzed: 1,
	}
	jobID := uuid.New()

	code, body := h.do(t, http.MethodPost, "/functions/v1/generate-highlights", serviceKey,
		fmt.Sprintf(`{"transcription":{"text":"j'ai couru","segments":[]},"jobId":%q}`, jobID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, jobID.String(), body["jobId"])
	hs, ok := body["highlights"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, hs["highlights"], 1)
	require.NotNil(t, h.highlights.jobID)
	assert.Equal(t, jobID, *h.highlights.jobID)

	code, _ = h.do(t, http.MethodPost, "/functions/v1/generate-highlights", serviceKey, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	h.highlights.err = entity.ErrEmptyTranscript
	code, _ = h.do(t, http.MethodPost, "/functions/v1/generate-highlights", serviceKey, `{"transcription":{"text":" "}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	h.highlights.err = entity.ErrInvalidHighlightSchema
	code, _ = h.do(t, http.MethodPost, "/functions/v1/generate-highlights", serviceKey, `{"transcription":{"text":"x"}}`)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestBackfill(t *testing.T) {
	h := newHarness()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	h.backfill.out = &usecase.BackfillOutput{Message: "Created 2 transcription jobs", Processed: 3, Created: 2, JobIDs: ids}

	code, body := h.do(t, http.MethodPost, "/functions/v1/backfill-transcription-jobs", serviceKey, `{"limit":10,"userId":"alice"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Created 2 transcription jobs", body["message"])
	assert.Equal(t, float64(3), body["processed"])
	assert.Equal(t, float64(2), body["created"])
	assert.Len(t, body["jobs"], 2)
	assert.Equal(t, usecase.BackfillInput{Limit: 10, UserID: "alice"}, h.backfill.got)
}

func TestOwnerJobEndpoints(t *testing.T) {
	h := newHarness()
	own := entity.NewJob("alice", "videos/a.mp4")
	own.Status = entity.JobStatusFailed
	own.ErrorMessage = "timeout"
	own.RetryCount = 1
	other := entity.NewJob("bob", "videos/b.mp4")
	h.jobs.jobs[own.ID] = own
	h.jobs.jobs[other.ID] = other

	code, body := h.do(t, http.MethodGet, "/v1/jobs/"+own.ID.String(), "alice-token", "")
	assert.Equal(t, http.StatusOK, code)
	job := body["job"].(map[string]any)
	assert.Equal(t, "failed", job["status"])
	assert.Equal(t, "timeout", job["error_message"])

	code, otherBody := h.do(t, http.MethodGet, "/v1/jobs/"+other.ID.String(), "alice-token", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, missingBody := h.do(t, http.MethodGet, "/v1/jobs/"+uuid.NewString(), "alice-token", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, missingBody["error"], otherBody["error"])

	code, _ = h.do(t, http.MethodGet, "/v1/jobs/"+uuid.NewString(), "alice-token", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodGet, "/v1/jobs/not-a-uuid", "alice-token", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(t, http.MethodGet, "/v1/jobs?limit=5", "alice-token", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["jobs"], 1)

	code, body = h.do(t, http.MethodPost, "/v1/jobs/"+own.ID.String()+"/retry", "alice-token", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])

	done := entity.NewJob("alice", "videos/c.mp4")
	done.Status = entity.JobStatusCompleted
	h.jobs.jobs[done.ID] = done
	code, _ = h.do(t, http.MethodPost, "/v1/jobs/"+done.ID.String()+"/retry", "alice-token", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = h.do(t, http.MethodPost, "/v1/jobs/"+other.ID.String()+"/retry", "alice-token", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodGet, "/v1/jobs", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}
