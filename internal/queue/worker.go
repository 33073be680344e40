package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reconnity/easm/internal/logger"
)

// maxDeliveries bounds redelivery of a failing job before it is dropped.
const maxDeliveries = 3

// blockTimeout is how long a consumer blocks on an empty queue before
// re-checking for shutdown.
const blockTimeout = 2 * time.Second

// HandlerFunc executes one job. A non-nil error triggers redelivery until
// the delivery budget runs out.
type HandlerFunc func(ctx context.Context, job *Job) error

// Worker consumes one named queue with a fixed-size goroutine pool.
// Jobs are moved to a processing list while a handler runs and acknowledged
// by removal, so a crash mid-job leaves the job recoverable.
type Worker struct {
	queue       *Queue
	queueName   string
	concurrency int
	jobTimeout  time.Duration
	logger      *logger.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewWorker(q *Queue, queueName string, concurrency int, jobTimeout time.Duration, log *logger.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		queueName:   queueName,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		logger:      log,
		handlers:    make(map[string]HandlerFunc),
	}
}

// Register binds a job function name to its handler. Must be called before Run.
func (w *Worker) Register(function string, handler HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[function] = handler
}

func (w *Worker) handler(function string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[function]
	return h, ok
}

// Run requeues any jobs orphaned by a previous crash, then consumes the
// queue until the context is cancelled. It blocks until all consumers have
// drained their in-flight job.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.requeueOrphans(ctx); err != nil {
		return fmt.Errorf("failed to requeue orphaned jobs: %w", err)
	}

	w.logger.Info("Worker pool started", "queue", w.queueName, "concurrency", w.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info("Worker pool stopped", "queue", w.queueName)
	return nil
}

// requeueOrphans pushes jobs left on the processing list by a crashed
// worker back onto the queue. Runs before consumers start, so the list only
// holds leftovers from the previous process.
func (w *Worker) requeueOrphans(ctx context.Context) error {
	procKey := processingKey(w.queueName)

	entries, err := w.queue.client.LRange(ctx, procKey, 0, -1).Result()
	if err != nil {
		return err
	}

	for _, raw := range entries {
		if err := w.queue.client.LPush(ctx, queueKey(w.queueName), raw).Err(); err != nil {
			return err
		}
		if err := w.queue.client.LRem(ctx, procKey, 1, raw).Err(); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		w.logger.Info("Requeued orphaned jobs", "queue", w.queueName, "count", len(entries))
	}
	return nil
}

func (w *Worker) consume(ctx context.Context) {
	srcKey := queueKey(w.queueName)
	procKey := processingKey(w.queueName)

	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := w.queue.client.BLMove(ctx, srcKey, procKey, "RIGHT", "LEFT", blockTimeout).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to fetch job from "+w.queueName, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		w.process(ctx, raw)
	}
}

// process runs one job end-to-end: decode, dispatch, ack or redeliver.
func (w *Worker) process(ctx context.Context, raw string) {
	procKey := processingKey(w.queueName)

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Not a valid envelope; nothing to redeliver.
		w.logger.Error("Dropping undecodable job on "+w.queueName, err)
		w.queue.client.LRem(ctx, procKey, 1, raw)
		jobsFailed.WithLabelValues(w.queueName, "unknown").Inc()
		return
	}

	jobsDelivered.WithLabelValues(w.queueName, job.Function).Inc()

	handler, ok := w.handler(job.Function)
	if !ok {
		w.logger.Error("No handler for function "+job.Function, nil)
		w.queue.client.LRem(ctx, procKey, 1, raw)
		jobsFailed.WithLabelValues(w.queueName, job.Function).Inc()
		return
	}

	workersInFlight.WithLabelValues(w.queueName).Inc()
	start := time.Now()

	jobCtx := ctx
	var cancel context.CancelFunc
	if w.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
	}
	err := handler(jobCtx, &job)
	if cancel != nil {
		cancel()
	}

	jobDuration.WithLabelValues(w.queueName, job.Function).Observe(time.Since(start).Seconds())
	workersInFlight.WithLabelValues(w.queueName).Dec()

	if err == nil {
		w.queue.client.LRem(ctx, procKey, 1, raw)
		jobsSucceeded.WithLabelValues(w.queueName, job.Function).Inc()
		w.logger.Debug("Job completed", "queue", w.queueName, "function", job.Function, "job_id", job.ID)
		return
	}

	w.logger.Error(fmt.Sprintf("Job %s (%s) failed", job.ID, job.Function), err)

	job.Deliveries++
	if job.Deliveries >= maxDeliveries {
		w.queue.client.LRem(ctx, procKey, 1, raw)
		jobsFailed.WithLabelValues(w.queueName, job.Function).Inc()
		w.logger.Error(fmt.Sprintf("Dropping job %s after %d deliveries", job.ID, job.Deliveries), nil)
		return
	}

	updated, marshalErr := json.Marshal(&job)
	if marshalErr != nil {
		w.queue.client.LRem(ctx, procKey, 1, raw)
		jobsFailed.WithLabelValues(w.queueName, job.Function).Inc()
		return
	}

	// Push the bumped copy before acking the original. A crash between the
	// two duplicates the job, which the idempotent handlers absorb; the
	// reverse order would lose it.
	if pushErr := w.queue.client.LPush(ctx, queueKey(w.queueName), updated).Err(); pushErr != nil {
		// Leave the original on the processing list; orphan requeue picks
		// it up on the next start.
		w.logger.Error("Failed to redeliver job "+job.ID, pushErr)
		return
	}
	w.queue.client.LRem(ctx, procKey, 1, raw)
	jobsRetried.WithLabelValues(w.queueName, job.Function).Inc()
}
