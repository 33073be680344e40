package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
)

// CoreQueue is the queue serviced by the dispatcher and result processor.
const CoreQueue = "core"

// Job function names on the core queue.
const (
	FunctionScanAsset         = "scan_asset"
	FunctionProcessScanResult = "process_scan_result"
)

// ErrUnavailable is returned when the queue transport keeps failing after
// the enqueue retry budget is exhausted.
var ErrUnavailable = errors.New("job queue unavailable")

// Enqueue retry policy: 0.5s initial delay, doubling, 3 attempts total.
const (
	enqueueMaxAttempts  = 3
	enqueueInitialDelay = 500 * time.Millisecond
	enqueueBackoff      = 2
)

// Job is the envelope carried through every named queue.
type Job struct {
	ID         string          `json:"id"`
	Function   string          `json:"function"`
	ScanID     string          `json:"scan_id,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Deliveries int             `json:"deliveries"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewJob builds an envelope for the given function and payload.
func NewJob(function, scanID string, payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return &Job{
		ID:         uuid.New().String(),
		Function:   function,
		ScanID:     scanID,
		EnqueuedAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// ScanAssetPayload is the argument of a scan_asset job. Options stay opaque
// here; only the owning scanner worker decodes them against its schema.
type ScanAssetPayload struct {
	Target  string          `json:"target"`
	Scanner string          `json:"scanner"`
	Options json.RawMessage `json:"options,omitempty"`
}

// RunScanPayload is the argument of a run_<scanner> job
type RunScanPayload struct {
	Target  string          `json:"target"`
	Options json.RawMessage `json:"options,omitempty"`
}

// ScanResultPayload is the argument of a process_scan_result job
type ScanResultPayload struct {
	Status  string              `json:"status"`
	Results *models.ScanResults `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
	Scanner string              `json:"scanner"`
}

// Queue is a Redis-backed set of named job queues with at-least-once delivery
type Queue struct {
	client *redis.Client
	logger *logger.Logger
}

// New connects to the queue broker and verifies the connection.
func New(redisURL string, log *logger.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to job queue broker", "addr", opts.Addr)

	return &Queue{client: client, logger: log}, nil
}

func queueKey(name string) string      { return "easm:queue:" + name }
func processingKey(name string) string { return "easm:processing:" + name }

// Enqueue pushes a job onto the named queue, retrying transient transport
// failures with exponential backoff before giving up.
func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	delay := enqueueInitialDelay
	var lastErr error

	for attempt := 1; attempt <= enqueueMaxAttempts; attempt++ {
		if attempt > 1 {
			enqueueRetries.WithLabelValues(queueName).Inc()
			q.logger.Info("Retrying enqueue", "queue", queueName, "function", job.Function, "attempt", attempt)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= enqueueBackoff
		}

		if err := q.client.LPush(ctx, queueKey(queueName), raw).Err(); err != nil {
			lastErr = err
			continue
		}

		q.logger.Debug("Job enqueued", "queue", queueName, "function", job.Function, "job_id", job.ID)
		return nil
	}

	return fmt.Errorf("%w: enqueue to %s failed after %d attempts: %v",
		ErrUnavailable, queueName, enqueueMaxAttempts, lastErr)
}

// Depth returns the number of jobs waiting in the named queue.
func (q *Queue) Depth(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueKey(queueName)).Result()
}

// OldestAge returns the age of the oldest waiting job, or zero when the
// queue is empty.
func (q *Queue) OldestAge(ctx context.Context, queueName string) (time.Duration, error) {
	raw, err := q.client.LIndex(ctx, queueKey(queueName), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return 0, fmt.Errorf("failed to decode oldest job: %w", err)
	}

	return time.Since(job.EnqueuedAt), nil
}

// Monitor periodically publishes queue depth and oldest-job age gauges for
// the given queues until the context is cancelled.
func (q *Queue) Monitor(ctx context.Context, queues []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range queues {
				depth, err := q.Depth(ctx, name)
				if err != nil {
					q.logger.Error("Failed to read queue depth for "+name, err)
					continue
				}
				queueDepth.WithLabelValues(name).Set(float64(depth))

				age, err := q.OldestAge(ctx, name)
				if err != nil {
					q.logger.Error("Failed to read oldest job age for "+name, err)
					continue
				}
				queueOldestAge.WithLabelValues(name).Set(age.Seconds())
			}
		}
	}
}

// Close releases the underlying Redis connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}
