package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/service"
)

// ScanFinisher is the slice of the scan service the result processor needs.
type ScanFinisher interface {
	CompleteScan(ctx context.Context, scanID uuid.UUID, results *models.ScanResults) error
	FailScan(ctx context.Context, scanID uuid.UUID, errorMessage string) error
}

// ResultProcessor applies process_scan_result envelopes from the core queue
// to the scan store.
type ResultProcessor struct {
	scans  ScanFinisher
	logger *logger.Logger
}

func NewResultProcessor(scans ScanFinisher, log *logger.Logger) *ResultProcessor {
	return &ResultProcessor{scans: scans, logger: log}
}

// HandleProcessScanResult transitions the named scan to its terminal state.
// Malformed envelopes and unknown scans are dropped; store errors propagate
// so the job is redelivered.
func (p *ResultProcessor) HandleProcessScanResult(ctx context.Context, job *queue.Job) error {
	scanID, err := uuid.Parse(job.ScanID)
	if err != nil {
		p.logger.Error("Dropping result with invalid scan_id "+job.ScanID, err)
		return nil
	}

	var payload queue.ScanResultPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error("Dropping undecodable result for scan "+job.ScanID, err)
		return nil
	}

	switch payload.Status {
	case models.ScanStatusCompleted:
		results := payload.Results
		if results == nil {
			results = &models.ScanResults{ScanID: job.ScanID, Scanner: payload.Scanner}
		}
		err = p.scans.CompleteScan(ctx, scanID, results)

	case models.ScanStatusFailed:
		message := payload.Error
		if message == "" {
			message = "scan failed"
		}
		err = p.scans.FailScan(ctx, scanID, message)

	default:
		p.logger.Info("Ignoring result with unknown status", "scan_id", job.ScanID, "status", payload.Status)
		return nil
	}

	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			p.logger.Error("Dropping result for unknown scan "+job.ScanID, err)
			return nil
		}
		return fmt.Errorf("failed to process result for scan %s: %w", job.ScanID, err)
	}

	return nil
}
