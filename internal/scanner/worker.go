package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
)

// Enqueuer is the slice of the job queue a scanner worker needs to report
// results back to the core.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, job *queue.Job) error
}

// Worker binds a Runner to the queue protocol: it consumes run_<scanner>
// jobs, executes the binary under a deadline, and reports the terminal
// outcome through the core queue. It never touches the scan store.
type Worker struct {
	runner Runner
	spec   Spec
	queue  Enqueuer
	logger *logger.Logger
}

// NewWorker binds a runner to its queue spec. A non-zero defaultTimeout
// overrides the built-in per-scanner default.
func NewWorker(runner Runner, q Enqueuer, defaultTimeout time.Duration, log *logger.Logger) (*Worker, error) {
	spec, ok := Lookup(runner.Type())
	if !ok {
		return nil, fmt.Errorf("unknown scanner type: %s", runner.Type())
	}
	if defaultTimeout > 0 {
		spec.DefaultTimeout = defaultTimeout
	}
	return &Worker{runner: runner, spec: spec, queue: q, logger: log}, nil
}

// Spec returns the queue/function binding of the wrapped scanner.
func (w *Worker) Spec() Spec {
	return w.spec
}

// HandleRunScan executes one scan job end-to-end.
func (w *Worker) HandleRunScan(ctx context.Context, job *queue.Job) error {
	var payload queue.RunScanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.Error("Undecodable run payload for job "+job.ID, err)
		return w.report(ctx, job.ScanID, queue.ScanResultPayload{
			Status:  models.ScanStatusFailed,
			Error:   "invalid scan job payload",
			Scanner: w.spec.Binary,
		})
	}
	if job.ScanID == "" || payload.Target == "" {
		w.logger.Error(fmt.Sprintf("Incomplete run envelope for job %s", job.ID), nil)
		return w.report(ctx, job.ScanID, queue.ScanResultPayload{
			Status:  models.ScanStatusFailed,
			Error:   "incomplete scan job envelope",
			Scanner: w.spec.Binary,
		})
	}

	timeout := w.spec.DefaultTimeout
	if t := timeoutOverride(payload.Options); t > 0 {
		timeout = t
	}

	w.logger.Info("Starting scan", "scan_id", job.ScanID, "target", payload.Target,
		"scanner", w.spec.Binary, "timeout", timeout.String())

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	results, err := w.runner.Run(runCtx, payload.Target, payload.Options)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("Scan "+job.ScanID+" failed", err)
		return w.report(ctx, job.ScanID, queue.ScanResultPayload{
			Status:  models.ScanStatusFailed,
			Error:   err.Error(),
			Scanner: w.spec.Binary,
		})
	}

	results.ScanID = job.ScanID
	results.ScanDuration = duration.Seconds()
	results.Timestamp = float64(time.Now().UnixMilli()) / 1000

	w.logger.Info("Scan finished", "scan_id", job.ScanID,
		"open_ports", len(results.OpenPorts), "vulnerabilities", len(results.Vulnerabilities),
		"duration", duration.String())

	return w.report(ctx, job.ScanID, queue.ScanResultPayload{
		Status:  models.ScanStatusCompleted,
		Results: results,
		Scanner: w.spec.Binary,
	})
}

// report pushes the terminal outcome to the core queue. An enqueue failure
// propagates so the run job is redelivered rather than lost.
func (w *Worker) report(ctx context.Context, scanID string, payload queue.ScanResultPayload) error {
	if scanID == "" {
		return nil
	}

	job, err := queue.NewJob(queue.FunctionProcessScanResult, scanID, payload)
	if err != nil {
		return err
	}
	return w.queue.Enqueue(ctx, queue.CoreQueue, job)
}

// timeoutOverride reads an options.timeout value in seconds, if present.
func timeoutOverride(options []byte) time.Duration {
	if len(options) == 0 {
		return 0
	}
	var probe struct {
		Timeout int `json:"timeout"`
	}
	if err := json.Unmarshal(options, &probe); err != nil || probe.Timeout <= 0 {
		return 0
	}
	return time.Duration(probe.Timeout) * time.Second
}
