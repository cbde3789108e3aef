package reconciliation

import (
	"context"
	"time"
)

// Repository persists reconciliation runs and discrepancies.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	SaveRun(ctx context.Context, run *Run) error
	// FindRun returns ErrRunNotFound for unknown IDs.
	FindRun(ctx context.Context, id string) (*Run, error)
	ListRunsSince(ctx context.Context, since time.Time, limit int) ([]*Run, error)

	// FindOpenDiscrepancy returns the open discrepancy for a
	// (resource, check) pair, or (nil, nil) when none is open.
	FindOpenDiscrepancy(ctx context.Context, resourceType, resourceID, checkName string) (*Discrepancy, error)
	SaveDiscrepancy(ctx context.Context, d *Discrepancy) error
	// FindDiscrepancy returns ErrDiscrepancyNotFound for unknown IDs.
	FindDiscrepancy(ctx context.Context, id int64) (*Discrepancy, error)
	ListByRun(ctx context.Context, runID string) ([]*Discrepancy, error)
}
