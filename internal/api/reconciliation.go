package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/reconciliation"
)

type batchConfigRequest struct {
	BatchSize    int `json:"batchSize"`
	BatchDelayMS int `json:"batchDelayMs"`
}

type triggerReconciliationRequest struct {
	ResourceType string              `json:"resourceType"`
	StartDate    *time.Time          `json:"startDate"`
	EndDate      *time.Time          `json:"endDate"`
	Config       *batchConfigRequest `json:"config"`
	CatchUp      bool                `json:"catchUp"`
	DaysBack     int                 `json:"daysBack"`
}

// validate returns field-level validation errors, empty when the request
// is well formed.
func (req *triggerReconciliationRequest) validate() map[string]string {
	errs := make(map[string]string)

	if req.ResourceType == "" {
		errs["resourceType"] = "resourceType is required"
	}

	if req.CatchUp || req.DaysBack > 0 {
		if req.DaysBack <= 0 {
			errs["daysBack"] = "daysBack must be positive for a catch-up run"
		}
		return errs
	}

	if req.StartDate == nil {
		errs["startDate"] = "startDate is required unless catchUp is set"
	}
	if req.EndDate == nil {
		errs["endDate"] = "endDate is required unless catchUp is set"
	}
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		errs["endDate"] = "endDate must be after startDate"
	}
	return errs
}

// TriggerReconciliation starts a reconciliation sweep: either an explicit
// [startDate, endDate] window, or a catch-up over trailing day windows.
func (r *Router) TriggerReconciliation(c *gin.Context) {
	var req triggerReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	if errs := req.validate(); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "validation failed", "fields": errs})
		return
	}

	var batch *reconciliation.BatchConfig
	if req.Config != nil {
		batch = &reconciliation.BatchConfig{
			BatchSize:  req.Config.BatchSize,
			BatchDelay: time.Duration(req.Config.BatchDelayMS) * time.Millisecond,
		}
	}

	ctx := c.Request.Context()

	if req.CatchUp || req.DaysBack > 0 {
		runs, err := r.recon.PerformCatchUpReconciliation(ctx, req.ResourceType, req.DaysBack)
		if err != nil && len(runs) == 0 {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "runs": runs, "count": len(runs)})
		return
	}

	run, err := r.recon.PerformBatchReconciliation(ctx, req.ResourceType, *req.StartDate, *req.EndDate, batch)
	if err != nil {
		if run != nil {
			// The failed run was still recorded.
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "run": run})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "run": run})
}

// ReconciliationHistory lists runs started in the trailing window. A
// runId query parameter returns that run's report instead.
func (r *Router) ReconciliationHistory(c *gin.Context) {
	if runID := c.Query("runId"); runID != "" {
		r.reportByRunID(c, runID)
		return
	}

	hours := queryInt(c, "hours", 24)
	limit := queryInt(c, "limit", 50)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	runs, err := r.recon.ListRunsSince(c.Request.Context(), since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"count":  len(runs),
		"paused": r.recon.IsPaused(),
	})
}

// ReconciliationReport returns the full discrepancy report for one run.
func (r *Router) ReconciliationReport(c *gin.Context) {
	r.reportByRunID(c, c.Param("runId"))
}

func (r *Router) reportByRunID(c *gin.Context, runID string) {
	report, err := r.reporter.GenerateReport(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

type resolveDiscrepancyRequest struct {
	Resolution domain.Resolution `json:"resolution"`
}

// ResolveDiscrepancy applies an operator resolution. Resolving twice is
// acknowledged with the already-resolved record.
func (r *Router) ResolveDiscrepancy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discrepancy id"})
		return
	}

	var req resolveDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Resolution.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resolution.type is required"})
		return
	}

	d, err := r.recon.ResolveDiscrepancy(c.Request.Context(), id, req.Resolution)
	if err != nil {
		if errors.Is(err, domain.ErrDiscrepancyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "discrepancy not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"discrepancy": d})
}

// PauseReconciliation suspends in-flight sweeps between batches.
func (r *Router) PauseReconciliation(c *gin.Context) {
	r.recon.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// ResumeReconciliation resumes suspended sweeps.
func (r *Router) ResumeReconciliation(c *gin.Context) {
	r.recon.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}
