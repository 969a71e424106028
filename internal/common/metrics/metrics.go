// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	AnswersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_answers_submitted_total",
			Help: "Answer submissions by outcome",
		},
		[]string{"outcome"},
	)

	TicketsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_tickets_submitted_total",
			Help: "Ticket submissions by outcome",
		},
		[]string{"outcome"},
	)

	TicketsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_tickets_reviewed_total",
			Help: "Ticket reviews by decision",
		},
		[]string{"decision"},
	)

	QuestionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_question_cache_lookups_total",
			Help: "Active question cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
