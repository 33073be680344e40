package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
)

type fakeRunner struct {
	scannerType string
	results     *models.ScanResults
	err         error
	gotTarget   string
	gotDeadline time.Duration
}

func (f *fakeRunner) Type() string { return f.scannerType }

func (f *fakeRunner) Run(ctx context.Context, target string, options []byte) (*models.ScanResults, error) {
	f.gotTarget = target
	if deadline, ok := ctx.Deadline(); ok {
		f.gotDeadline = time.Until(deadline)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeReporter struct {
	jobs  []*queue.Job
	names []string
	err   error
}

func (f *fakeReporter) Enqueue(ctx context.Context, queueName string, job *queue.Job) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, queueName)
	f.jobs = append(f.jobs, job)
	return nil
}

func runJob(t *testing.T, scanID string, payload queue.RunScanPayload) *queue.Job {
	t.Helper()
	job, err := queue.NewJob("run_port_fast", scanID, payload)
	if err != nil {
		t.Fatalf("Failed to build job: %v", err)
	}
	return job
}

func TestWorkerReportsCompletion(t *testing.T) {
	runner := &fakeRunner{
		scannerType: models.ScannerPortFast,
		results: &models.ScanResults{
			Scanner:   "masscan",
			Target:    "198.51.100.7",
			OpenPorts: []int{443},
			Services:  map[string]models.ServiceInfo{"443": {Name: "https"}},
		},
	}
	reporter := &fakeReporter{}

	w, err := NewWorker(runner, reporter, 0, logger.NewLogger("test"))
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}

	scanID := uuid.New().String()
	if err := w.HandleRunScan(context.Background(), runJob(t, scanID, queue.RunScanPayload{Target: "198.51.100.7"})); err != nil {
		t.Fatalf("HandleRunScan failed: %v", err)
	}

	if len(reporter.jobs) != 1 || reporter.names[0] != queue.CoreQueue {
		t.Fatalf("Expected one result on the core queue, got %v", reporter.names)
	}

	var payload queue.ScanResultPayload
	if err := json.Unmarshal(reporter.jobs[0].Payload, &payload); err != nil {
		t.Fatalf("Failed to decode result payload: %v", err)
	}
	if payload.Status != models.ScanStatusCompleted {
		t.Errorf("Expected completed, got %s", payload.Status)
	}
	if payload.Scanner != "masscan" {
		t.Errorf("Expected scanner masscan, got %s", payload.Scanner)
	}
	if payload.Results.ScanID != scanID {
		t.Errorf("Scan ID not stamped on results: %s", payload.Results.ScanID)
	}
	if payload.Results.Timestamp == 0 {
		t.Error("Expected a timestamp on results")
	}
}

func TestWorkerReportsFailure(t *testing.T) {
	runner := &fakeRunner{scannerType: models.ScannerPortDeep, err: errors.New("nmap failed: exit status 1")}
	reporter := &fakeReporter{}

	w, err := NewWorker(runner, reporter, 0, logger.NewLogger("test"))
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}

	scanID := uuid.New().String()
	if err := w.HandleRunScan(context.Background(), runJob(t, scanID, queue.RunScanPayload{Target: "example.com"})); err != nil {
		t.Fatalf("HandleRunScan failed: %v", err)
	}

	var payload queue.ScanResultPayload
	if err := json.Unmarshal(reporter.jobs[0].Payload, &payload); err != nil {
		t.Fatalf("Failed to decode result payload: %v", err)
	}
	if payload.Status != models.ScanStatusFailed {
		t.Errorf("Expected failed, got %s", payload.Status)
	}
	if payload.Error == "" {
		t.Error("Expected an error message")
	}
	if payload.Scanner != "nmap" {
		t.Errorf("Expected scanner nmap, got %s", payload.Scanner)
	}
}

func TestWorkerDefaultTimeout(t *testing.T) {
	runner := &fakeRunner{scannerType: models.ScannerVuln, results: &models.ScanResults{Scanner: "nuclei", Target: "example.com"}}
	reporter := &fakeReporter{}

	w, _ := NewWorker(runner, reporter, 0, logger.NewLogger("test"))
	if err := w.HandleRunScan(context.Background(), runJob(t, uuid.New().String(), queue.RunScanPayload{Target: "example.com"})); err != nil {
		t.Fatalf("HandleRunScan failed: %v", err)
	}

	// Default vuln deadline is 10 minutes.
	if runner.gotDeadline < 9*time.Minute || runner.gotDeadline > 10*time.Minute {
		t.Errorf("Expected ~10m deadline, got %v", runner.gotDeadline)
	}
}

func TestWorkerTimeoutOverride(t *testing.T) {
	runner := &fakeRunner{scannerType: models.ScannerPortFast, results: &models.ScanResults{Scanner: "masscan", Target: "x"}}
	reporter := &fakeReporter{}

	w, _ := NewWorker(runner, reporter, 0, logger.NewLogger("test"))
	err := w.HandleRunScan(context.Background(), runJob(t, uuid.New().String(), queue.RunScanPayload{
		Target:  "198.51.100.7",
		Options: json.RawMessage(`{"timeout":30}`),
	}))
	if err != nil {
		t.Fatalf("HandleRunScan failed: %v", err)
	}

	if runner.gotDeadline < 29*time.Second || runner.gotDeadline > 30*time.Second {
		t.Errorf("Expected ~30s deadline, got %v", runner.gotDeadline)
	}
}

func TestWorkerReportFailurePropagatesEnqueueError(t *testing.T) {
	runner := &fakeRunner{scannerType: models.ScannerPortFast, results: &models.ScanResults{Scanner: "masscan", Target: "x"}}
	reporter := &fakeReporter{err: queue.ErrUnavailable}

	w, _ := NewWorker(runner, reporter, 0, logger.NewLogger("test"))
	err := w.HandleRunScan(context.Background(), runJob(t, uuid.New().String(), queue.RunScanPayload{Target: "198.51.100.7"}))
	if !errors.Is(err, queue.ErrUnavailable) {
		t.Fatalf("Expected enqueue error to propagate, got %v", err)
	}
}

func TestNewWorkerRejectsUnknownType(t *testing.T) {
	runner := &fakeRunner{scannerType: "zmap"}
	if _, err := NewWorker(runner, &fakeReporter{}, 0, logger.NewLogger("test")); err == nil {
		t.Fatal("Expected an error for unknown scanner type")
	}
}
