package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "easm_jobs_delivered_total",
		Help: "Number of jobs delivered to a worker",
	}, []string{"queue", "function"})

	jobsSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "easm_jobs_succeeded_total",
		Help: "Number of jobs that completed successfully",
	}, []string{"queue", "function"})

	jobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "easm_jobs_failed_total",
		Help: "Number of jobs dropped after exhausting redelivery",
	}, []string{"queue", "function"})

	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "easm_jobs_retried_total",
		Help: "Number of jobs requeued after a handler error",
	}, []string{"queue", "function"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easm_job_duration_seconds",
		Help:    "Time taken to execute a job",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"queue", "function"})

	enqueueRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "easm_enqueue_retries_total",
		Help: "Number of retried enqueue operations",
	}, []string{"queue"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "easm_queue_depth",
		Help: "Number of jobs waiting in a queue",
	}, []string{"queue"})

	queueOldestAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "easm_queue_oldest_age_seconds",
		Help: "Age of the oldest waiting job in a queue",
	}, []string{"queue"})

	workersInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "easm_workers_in_flight",
		Help: "Number of jobs currently executing",
	}, []string{"queue"})
)
