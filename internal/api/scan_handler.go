package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reconnity/easm/internal/logger"
	"github.com/reconnity/easm/internal/models"
	"github.com/reconnity/easm/internal/queue"
	"github.com/reconnity/easm/internal/service"
)

// ScanHandler serves the scan endpoints.
type ScanHandler struct {
	scans  *service.ScanService
	logger *logger.Logger
}

func NewScanHandler(scans *service.ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, logger: log}
}

// CreateScan handles POST /api/v1/scan.
func (h *ScanHandler) CreateScan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "target and scanner are required"})
		return
	}

	resp, err := h.scans.CreateScan(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTarget),
			errors.Is(err, service.ErrUnsupportedScanner),
			errors.Is(err, service.ErrInvalidOptions):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, queue.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan queue unavailable"})
		default:
			h.logger.Error("Failed to create scan", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create scan"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetScan handles GET /api/v1/scan/:scan_id.
func (h *ScanHandler) GetScan(c *gin.Context) {
	scanID, err := uuid.Parse(c.Param("scan_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}

	status, err := h.scans.GetScan(c.Request.Context(), scanID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		h.logger.Error("Failed to load scan "+scanID.String(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scan"})
		return
	}

	c.JSON(http.StatusOK, status)
}
