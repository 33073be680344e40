package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/scanner"
)

// Enqueuer is the slice of the job queue the task handlers need.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, job *queue.Job) error
}

// Dispatcher routes scan_asset jobs from the core queue to the queue of the
// scanner type named in the payload.
type Dispatcher struct {
	queue  Enqueuer
	logger *logger.Logger
}

func NewDispatcher(q Enqueuer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{queue: q, logger: log}
}

// HandleScanAsset validates a scan_asset envelope and forwards it as a
// run_<scanner> job. Contract violations are reported back through the
// result path as a failed scan, never redelivered.
func (d *Dispatcher) HandleScanAsset(ctx context.Context, job *queue.Job) error {
	var payload queue.ScanAssetPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		d.logger.Error("Undecodable scan_asset payload for job "+job.ID, err)
		return d.reportFailure(ctx, job.ScanID, "invalid scan_asset payload")
	}

	if job.ScanID == "" || payload.Target == "" || payload.Scanner == "" {
		d.logger.Error(fmt.Sprintf("Incomplete scan_asset envelope for job %s", job.ID), nil)
		return d.reportFailure(ctx, job.ScanID, "incomplete scan_asset envelope")
	}

	if !models.SupportedScanner(payload.Scanner) {
		return d.reportFailure(ctx, job.ScanID, fmt.Sprintf("unsupported scanner type: %s", payload.Scanner))
	}

	spec, ok := scanner.Lookup(payload.Scanner)
	if !ok {
		return d.reportFailure(ctx, job.ScanID, fmt.Sprintf("no route for scanner type: %s", payload.Scanner))
	}

	runJob, err := queue.NewJob(spec.Function, job.ScanID, queue.RunScanPayload{
		Target:  payload.Target,
		Options: payload.Options,
	})
	if err != nil {
		return d.reportFailure(ctx, job.ScanID, "failed to build scan job")
	}

	if err := d.queue.Enqueue(ctx, spec.Queue, runJob); err != nil {
		d.logger.Error("Failed to dispatch scan "+job.ScanID+" to "+spec.Queue, err)
		return d.reportFailure(ctx, job.ScanID, fmt.Sprintf("failed to dispatch to %s", spec.Queue))
	}

	d.logger.Info("Scan dispatched", "scan_id", job.ScanID, "scanner", payload.Scanner, "queue", spec.Queue)
	return nil
}

// reportFailure pushes a failed result envelope so the scan reaches a
// terminal state instead of hanging in queued.
func (d *Dispatcher) reportFailure(ctx context.Context, scanID, message string) error {
	if scanID == "" {
		// Nothing to fail; the envelope never identified a scan.
		return nil
	}

	job, err := queue.NewJob(queue.FunctionProcessScanResult, scanID, queue.ScanResultPayload{
		Status:  models.ScanStatusFailed,
		Error:   message,
		Scanner: "core",
	})
	if err != nil {
		return err
	}
	return d.queue.Enqueue(ctx, queue.CoreQueue, job)
}
