package reconciliation

import (
	"errors"
	"time"
)

// RunStatus represents the lifecycle of a reconciliation sweep.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Severity grades a discrepancy for triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Named checks run against each mirrored resource.
const (
	CheckExists      = "exists_in_provider"
	CheckStatusMatch = "status_match"
	CheckAmountMatch = "amount_match"
)

// CheckSeverity is the static mapping from check name to severity.
var CheckSeverity = map[string]Severity{
	CheckExists:      SeverityCritical,
	CheckStatusMatch: SeverityHigh,
	CheckAmountMatch: SeverityCritical,
}

var (
	ErrRunNotFound         = errors.New("reconciliation run not found")
	ErrDiscrepancyNotFound = errors.New("discrepancy not found")
)

// Run records one reconciliation sweep over a resource type and window.
// A run is never silently dropped: it closes completed or failed, with
// whatever metrics accumulated.
type Run struct {
	ID                    string     `json:"id"`
	ResourceType          string     `json:"resource_type"`
	WindowStart           time.Time  `json:"window_start"`
	WindowEnd             time.Time  `json:"window_end"`
	Status                RunStatus  `json:"status"`
	StartedAt             time.Time  `json:"started_at"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	TotalChecks           int        `json:"total_checks"`
	DiscrepanciesFound    int        `json:"discrepancies_found"`
	DiscrepanciesResolved int        `json:"discrepancies_resolved"`
	LastError             string     `json:"last_error,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NewRun opens a run in running state.
func NewRun(id, resourceType string, windowStart, windowEnd time.Time) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:           id,
		ResourceType: resourceType,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Status:       RunRunning,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Close finishes the run, preserving whatever metrics accumulated.
func (r *Run) Close(status RunStatus, errMsg string) {
	now := time.Now().UTC()
	r.Status = status
	r.EndedAt = &now
	r.LastError = errMsg
	r.UpdatedAt = now
}

// Resolution describes how a discrepancy was settled.
type Resolution struct {
	Type string `json:"type"`
	Note string `json:"note,omitempty"`
}

// Discrepancy is a detected mismatch between the local mirror and the
// provider for one (resource, check) pair. At most one open discrepancy
// exists per pair; re-detection reuses the open row.
type Discrepancy struct {
	ID             int64      `json:"id,string"`
	RunID          string     `json:"run_id"`
	ResourceType   string     `json:"resource_type"`
	ResourceID     string     `json:"resource_id"`
	CheckName      string     `json:"check_name"`
	Severity       Severity   `json:"severity"`
	Details        string     `json:"details"`
	Resolved       bool       `json:"resolved"`
	ResolutionType string     `json:"resolution_type,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	DetectedAt     time.Time  `json:"detected_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// NewDiscrepancy opens a discrepancy for a failed check.
func NewDiscrepancy(id int64, runID, resourceType, resourceID, checkName, details string) *Discrepancy {
	severity, ok := CheckSeverity[checkName]
	if !ok {
		severity = SeverityMedium
	}
	return &Discrepancy{
		ID:           id,
		RunID:        runID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CheckName:    checkName,
		Severity:     severity,
		Details:      details,
		DetectedAt:   time.Now().UTC(),
	}
}

// Resolve closes the discrepancy. Resolution metadata is the only
// mutation allowed after the fact.
func (d *Discrepancy) Resolve(res Resolution) {
	if d.Resolved {
		return
	}
	now := time.Now().UTC()
	d.Resolved = true
	d.ResolutionType = res.Type
	d.ResolutionNote = res.Note
	d.ResolvedAt = &now
}
