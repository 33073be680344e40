package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/repository"
	"github.com/reconnity/easm/internal/risk"
	"github.com/reconnity/easm/internal/validation"
)

// Enqueuer is the slice of the job queue the service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, job *queue.Job) error
}

// ScanService owns the scan lifecycle: acceptance, dispatch hand-off, and
// the transactional terminal transitions with their derived records.
type ScanService struct {
	db         *sql.DB
	scans      *repository.ScanRepository
	findings   *repository.FindingRepository
	assets     *repository.AssetRepository
	riskScores *repository.RiskScoreRepository
	queue      Enqueuer
	riskTTL    time.Duration
	logger     *logger.Logger
}

func NewScanService(db *sql.DB, q Enqueuer, riskTTL time.Duration, log *logger.Logger) *ScanService {
	return &ScanService{
		db:         db,
		scans:      repository.NewScanRepository(db),
		findings:   repository.NewFindingRepository(db),
		assets:     repository.NewAssetRepository(db),
		riskScores: repository.NewRiskScoreRepository(db),
		queue:      q,
		riskTTL:    riskTTL,
		logger:     log,
	}
}

// CreateScan validates the request, persists a queued scan and hands it to
// the dispatch plane.
func (s *ScanService) CreateScan(ctx context.Context, req *models.ScanRequest) (*models.ScanResponse, error) {
	target := strings.TrimSpace(req.Target)

	if err := validation.ValidateTarget(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !models.SupportedScanner(req.Scanner) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScanner, req.Scanner)
	}
	if err := models.ValidateScanOptions(req.Scanner, req.Options); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	scan := &models.Scan{
		ID:        uuid.New(),
		Target:    target,
		Scanner:   req.Scanner,
		Status:    models.ScanStatusQueued,
		Options:   req.Options,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to persist scan: %w", err)
	}

	var optionsRaw json.RawMessage
	if req.Options != nil {
		optionsRaw, _ = json.Marshal(req.Options)
	}

	job, err := queue.NewJob(queue.FunctionScanAsset, scan.ID.String(), queue.ScanAssetPayload{
		Target:  target,
		Scanner: req.Scanner,
		Options: optionsRaw,
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, queue.CoreQueue, job); err != nil {
		// The scan row exists but nothing will ever pick it up; fail it so
		// clients see a terminal state instead of a scan stuck in queued.
		if failErr := s.FailScan(ctx, scan.ID, "failed to enqueue scan job"); failErr != nil {
			s.logger.Error("Failed to fail scan after enqueue error", failErr)
		}
		return nil, err
	}

	s.logger.Info("Scan created", "scan_id", scan.ID.String(), "target", target, "scanner", req.Scanner)

	return &models.ScanResponse{
		ScanID:  scan.ID.String(),
		Status:  models.ScanStatusQueued,
		Message: fmt.Sprintf("Scan queued for target %s", target),
	}, nil
}

// GetScan returns the public status view of a scan. Findings and the
// target's risk score are attached once the scan completed.
func (s *ScanService) GetScan(ctx context.Context, scanID uuid.UUID) (*models.ScanStatus, error) {
	scan, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}

	status := &models.ScanStatus{
		ScanID:      scan.ID.String(),
		Target:      scan.Target,
		Scanner:     scan.Scanner,
		Status:      scan.Status,
		Progress:    scan.Progress(),
		CreatedAt:   scan.CreatedAt.Format(time.RFC3339),
		StartedAt:   formatTimePtr(scan.StartedAt),
		CompletedAt: formatTimePtr(scan.CompletedAt),
		Options:     scan.Options,
		Results:     scan.Results,
		Error:       scan.ErrorMessage,
	}

	if scan.Status == models.ScanStatusCompleted {
		findings, err := s.findings.ListByScanID(ctx, scanID)
		if err != nil {
			return nil, fmt.Errorf("failed to load findings: %w", err)
		}
		status.Findings = findings

		score, err := s.riskScores.GetByTarget(ctx, scan.Target)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to load risk score: %w", err)
			}
		} else {
			status.RiskScore = &models.RiskScoreView{
				Score:        score.Score,
				Level:        risk.Level(score.Score),
				Factors:      score.Factors,
				CalculatedAt: score.CalculatedAt.Format(time.RFC3339),
			}
		}
	}

	return status, nil
}

// CompleteScan transitions a scan to completed and derives findings, the
// asset record and the target's risk score in one transaction. A scan
// already in a terminal state is left untouched.
func (s *ScanService) CompleteScan(ctx context.Context, scanID uuid.UUID, results *models.ScanResults) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scan, err := s.scans.GetForUpdateTx(ctx, tx, scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load scan for completion: %w", err)
	}

	if scan.IsTerminal() {
		s.logger.Info("Ignoring completion for terminal scan", "scan_id", scanID.String(), "status", scan.Status)
		return nil
	}

	now := time.Now().UTC()

	if err := s.scans.CompleteTx(ctx, tx, scanID, results, now); err != nil {
		return fmt.Errorf("failed to complete scan: %w", err)
	}

	findings := deriveFindings(scan, results, now)
	for i := range findings {
		if err := s.findings.InsertTx(ctx, tx, &findings[i]); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	asset := &models.Asset{
		ID:        uuid.New(),
		Target:    scan.Target,
		AssetType: validation.InferAssetType(scan.Target),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]interface{}{
			"first_scan_id":    scanID.String(),
			"first_scan_time":  now.Format(time.RFC3339),
			"discovery_method": results.Scanner,
		},
	}
	lastScan := map[string]interface{}{
		"last_scan_id":   scanID.String(),
		"last_scan_time": now.Format(time.RFC3339),
	}
	if err := s.assets.UpsertTx(ctx, tx, asset, lastScan); err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	assessment := risk.Calculate(findings)
	score := &models.RiskScore{
		ID:           uuid.New(),
		Target:       scan.Target,
		Score:        assessment.Score,
		Factors:      assessment.Factors,
		CalculatedAt: now,
		ExpiresAt:    now.Add(s.riskTTL),
	}
	if err := s.riskScores.UpsertTx(ctx, tx, score); err != nil {
		return fmt.Errorf("failed to upsert risk score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	s.logger.Info("Scan completed", "scan_id", scanID.String(),
		"findings", len(findings), "risk_score", assessment.Score, "risk_level", assessment.Level)
	return nil
}

// FailScan transitions a scan to failed with an error message. A scan
// already in a terminal state is left untouched.
func (s *ScanService) FailScan(ctx context.Context, scanID uuid.UUID, errorMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scan, err := s.scans.GetForUpdateTx(ctx, tx, scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load scan for failure: %w", err)
	}

	if scan.IsTerminal() {
		s.logger.Info("Ignoring failure for terminal scan", "scan_id", scanID.String(), "status", scan.Status)
		return nil
	}

	if err := s.scans.FailTx(ctx, tx, scanID, errorMessage, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to fail scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failure: %w", err)
	}

	s.logger.Info("Scan failed", "scan_id", scanID.String(), "error", errorMessage)
	return nil
}

// deriveFindings extracts atomic findings from a scan result: one per open
// port and one per reported vulnerability.
func deriveFindings(scan *models.Scan, results *models.ScanResults, now time.Time) []models.Finding {
	var findings []models.Finding

	for _, port := range results.OpenPorts {
		serviceName := "unknown"
		if info, ok := results.Services[strconv.Itoa(port)]; ok && info.Name != "" {
			serviceName = info.Name
		}
		p := port
		name := serviceName
		findings = append(findings, models.Finding{
			ID:          uuid.New(),
			ScanID:      scan.ID,
			Target:      scan.Target,
			FindingType: models.FindingTypeOpenPort,
			Severity:    models.SeverityMedium,
			Title:       fmt.Sprintf("Open port %d", p),
			Description: fmt.Sprintf("Port %d is open and running %s", p, name),
			Port:        &p,
			Service:     &name,
			CreatedAt:   now,
			Metadata:    map[string]interface{}{"scanner": results.Scanner},
		})
	}

	for _, vuln := range results.Vulnerabilities {
		severity := strings.ToLower(vuln.Severity)
		if !models.ValidSeverity(severity) {
			severity = models.SeverityInfo
		}
		metadata := map[string]interface{}{"scanner": results.Scanner}
		if vuln.ID != "" {
			metadata["template_id"] = vuln.ID
		}
		if vuln.URL != "" {
			metadata["url"] = vuln.URL
		}
		findings = append(findings, models.Finding{
			ID:          uuid.New(),
			ScanID:      scan.ID,
			Target:      scan.Target,
			FindingType: models.FindingTypeVulnerability,
			Severity:    severity,
			Title:       vuln.Name,
			Description: vuln.Description,
			CreatedAt:   now,
			Metadata:    metadata,
		})
	}

	return findings
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
