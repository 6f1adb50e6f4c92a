package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_jobs_processed_total",
		Help: "Total number of transcription jobs that reached a terminal state, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_transcription_job_duration_seconds",
		Help:    "Duration of each stage of the transcription pipeline",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_transcription_active_jobs",
		Help: "Number of jobs currently being transcribed by this process",
	})

	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_dispatch_total",
		Help: "Jobs handed to the dispatcher, by mode and result",
	}, []string{"mode", "result"})

	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_provider_requests_total",
		Help: "Transcription provider calls, by provider and result",
	}, []string{"provider", "result"})

	ProviderPollAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_transcription_provider_poll_attempts",
		Help:    "Number of status polls before a provider job settled",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider"})

	ChunksTranscribedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_chunks_total",
		Help: "Audio chunks sent to the chunked transcription path, by status",
	}, []string{"status"})

	HighlightsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_highlights_total",
		Help: "Highlight generation attempts, by result",
	}, []string{"result"})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_transcription_retry_total",
		Help: "Retries of outbound calls and redeliveries, by operation",
	}, []string{"operation"})
)
