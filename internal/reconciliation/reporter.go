package reconciliation

import (
	"context"

	domain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
)

// Report aggregates one run and its discrepancies for operators.
type Report struct {
	Run        *domain.Run             `json:"run"`
	Open       int                     `json:"open"`
	Resolved   int                     `json:"resolved"`
	BySeverity map[domain.Severity]int `json:"by_severity"`
	ByCheck    map[string]int          `json:"by_check"`
	ByResource map[string]int          `json:"by_resource"`
	Items      []*domain.Discrepancy   `json:"items"`
}

// Reporter builds discrepancy reports from persisted runs.
type Reporter struct {
	repo domain.Repository
}

func NewReporter(repo domain.Repository) *Reporter {
	return &Reporter{repo: repo}
}

// GenerateReport summarizes a run. Unknown run IDs surface
// reconciliation.ErrRunNotFound unchanged.
func (r *Reporter) GenerateReport(ctx context.Context, runID string) (*Report, error) {
	run, err := r.repo.FindRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	items, err := r.repo.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Run:        run,
		BySeverity: make(map[domain.Severity]int),
		ByCheck:    make(map[string]int),
		ByResource: make(map[string]int),
		Items:      items,
	}

	for _, d := range items {
		if d.Resolved {
			report.Resolved++
		} else {
			report.Open++
		}
		report.BySeverity[d.Severity]++
		report.ByCheck[d.CheckName]++
		report.ByResource[d.ResourceID]++
	}

	return report, nil
}
