package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
)

type capturedJob struct {
	queueName string
	job       *queue.Job
}

type fakeEnqueuer struct {
	jobs []capturedJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, queueName string, job *queue.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, capturedJob{queueName: queueName, job: job})
	return nil
}

func scanAssetJob(t *testing.T, scanID, target, scannerType string) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.FunctionScanAsset, scanID, queue.ScanAssetPayload{
		Target:  target,
		Scanner: scannerType,
	})
	if err != nil {
		t.Fatalf("Failed to build job: %v", err)
	}
	return job
}

func TestHandleScanAsset_RoutesToScannerQueue(t *testing.T) {
	tests := []struct {
		scanner      string
		wantQueue    string
		wantFunction string
	}{
		{models.ScannerPortFast, "scanner-port-fast", "run_port_fast"},
		{models.ScannerPortDeep, "scanner-port-deep", "run_port_deep"},
		{models.ScannerVuln, "scanner-vuln", "run_vuln"},
	}

	for _, tt := range tests {
		t.Run(tt.scanner, func(t *testing.T) {
			fq := &fakeEnqueuer{}
			d := NewDispatcher(fq, logger.NewLogger("test"))

			scanID := uuid.New().String()
			err := d.HandleScanAsset(context.Background(), scanAssetJob(t, scanID, "example.com", tt.scanner))
			if err != nil {
				t.Fatalf("HandleScanAsset failed: %v", err)
			}

			if len(fq.jobs) != 1 {
				t.Fatalf("Expected 1 enqueued job, got %d", len(fq.jobs))
			}
			if fq.jobs[0].queueName != tt.wantQueue {
				t.Errorf("Expected queue %s, got %s", tt.wantQueue, fq.jobs[0].queueName)
			}
			if fq.jobs[0].job.Function != tt.wantFunction {
				t.Errorf("Expected function %s, got %s", tt.wantFunction, fq.jobs[0].job.Function)
			}
			if fq.jobs[0].job.ScanID != scanID {
				t.Errorf("Scan ID not propagated: %s", fq.jobs[0].job.ScanID)
			}

			var payload queue.RunScanPayload
			if err := json.Unmarshal(fq.jobs[0].job.Payload, &payload); err != nil {
				t.Fatalf("Failed to decode run payload: %v", err)
			}
			if payload.Target != "example.com" {
				t.Errorf("Target not propagated: %s", payload.Target)
			}
		})
	}
}

func TestHandleScanAsset_OptionsPassThroughOpaquely(t *testing.T) {
	fq := &fakeEnqueuer{}
	d := NewDispatcher(fq, logger.NewLogger("test"))

	options := json.RawMessage(`{"ports":"1-1000","rate":500}`)
	job, _ := queue.NewJob(queue.FunctionScanAsset, uuid.New().String(), queue.ScanAssetPayload{
		Target:  "198.51.100.7",
		Scanner: models.ScannerPortFast,
		Options: options,
	})

	if err := d.HandleScanAsset(context.Background(), job); err != nil {
		t.Fatalf("HandleScanAsset failed: %v", err)
	}

	var payload queue.RunScanPayload
	if err := json.Unmarshal(fq.jobs[0].job.Payload, &payload); err != nil {
		t.Fatalf("Failed to decode run payload: %v", err)
	}
	if string(payload.Options) != string(options) {
		t.Errorf("Options not passed through verbatim: %s", payload.Options)
	}
}

func TestHandleScanAsset_UnsupportedScannerReportsFailure(t *testing.T) {
	fq := &fakeEnqueuer{}
	d := NewDispatcher(fq, logger.NewLogger("test"))

	scanID := uuid.New().String()
	err := d.HandleScanAsset(context.Background(), scanAssetJob(t, scanID, "example.com", "zmap"))
	if err != nil {
		t.Fatalf("HandleScanAsset failed: %v", err)
	}

	if len(fq.jobs) != 1 {
		t.Fatalf("Expected 1 failure envelope, got %d jobs", len(fq.jobs))
	}
	if fq.jobs[0].queueName != queue.CoreQueue {
		t.Errorf("Failure must go to the core queue, got %s", fq.jobs[0].queueName)
	}
	if fq.jobs[0].job.Function != queue.FunctionProcessScanResult {
		t.Errorf("Expected process_scan_result, got %s", fq.jobs[0].job.Function)
	}

	var payload queue.ScanResultPayload
	if err := json.Unmarshal(fq.jobs[0].job.Payload, &payload); err != nil {
		t.Fatalf("Failed to decode failure payload: %v", err)
	}
	if payload.Status != models.ScanStatusFailed {
		t.Errorf("Expected failed status, got %s", payload.Status)
	}
	if payload.Scanner != "core" {
		t.Errorf("Expected scanner core, got %s", payload.Scanner)
	}
	if payload.Error == "" {
		t.Error("Expected an error message in the failure payload")
	}
}

func TestHandleScanAsset_IncompleteEnvelopeReportsFailure(t *testing.T) {
	fq := &fakeEnqueuer{}
	d := NewDispatcher(fq, logger.NewLogger("test"))

	scanID := uuid.New().String()
	if err := d.HandleScanAsset(context.Background(), scanAssetJob(t, scanID, "", models.ScannerPortFast)); err != nil {
		t.Fatalf("HandleScanAsset failed: %v", err)
	}

	if len(fq.jobs) != 1 || fq.jobs[0].job.Function != queue.FunctionProcessScanResult {
		t.Fatalf("Expected a failure envelope, got %+v", fq.jobs)
	}
}

func TestHandleScanAsset_UndecodablePayloadWithoutScanIsDropped(t *testing.T) {
	fq := &fakeEnqueuer{}
	d := NewDispatcher(fq, logger.NewLogger("test"))

	job := &queue.Job{ID: uuid.New().String(), Function: queue.FunctionScanAsset, Payload: json.RawMessage(`{broken`)}
	if err := d.HandleScanAsset(context.Background(), job); err != nil {
		t.Fatalf("Expected drop, got error: %v", err)
	}
	if len(fq.jobs) != 0 {
		t.Errorf("Expected no jobs for an envelope without scan_id, got %d", len(fq.jobs))
	}
}

func TestHandleScanAsset_DispatchFailurePropagates(t *testing.T) {
	fq := &fakeEnqueuer{err: queue.ErrUnavailable}
	d := NewDispatcher(fq, logger.NewLogger("test"))

	// Both the dispatch and the failure report hit the broken queue, so the
	// error surfaces and the job gets redelivered.
	err := d.HandleScanAsset(context.Background(), scanAssetJob(t, uuid.New().String(), "example.com", models.ScannerVuln))
	if err == nil {
		t.Fatal("Expected an error when queue is unavailable")
	}
}
