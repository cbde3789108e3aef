package reconciliation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/provider"
	domain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
)

func TestGenerateReport(t *testing.T) {
	f := newEngineFixture(t)
	reporter := NewReporter(f.repo)

	// One missing at the provider, one status mismatch, one clean.
	f.addLocal("T1", "pending", "100.00")
	f.source.NotFoundIDs["T1"] = true
	f.addLocal("T2", "pending", "50.00")
	f.source.Transfers["T2"] = &provider.Transfer{ID: "T2", Status: "completed", Amount: "50.00"}
	f.addMatching("T3", "completed", "10.00")

	run, err := f.engine.PerformBatchReconciliation(context.Background(), "transfer", f.windowStart, f.windowEnd, nil)
	require.NoError(t, err)

	report, err := reporter.GenerateReport(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, report.Run.ID)
	assert.Equal(t, 2, report.Open)
	assert.Equal(t, 0, report.Resolved)
	assert.Len(t, report.Items, 2)

	assert.Equal(t, 1, report.BySeverity[domain.SeverityCritical])
	assert.Equal(t, 1, report.BySeverity[domain.SeverityHigh])
	assert.Equal(t, 1, report.ByCheck[domain.CheckExists])
	assert.Equal(t, 1, report.ByCheck[domain.CheckStatusMatch])
	assert.Equal(t, 1, report.ByResource["T1"])
	assert.Equal(t, 1, report.ByResource["T2"])
}

func TestGenerateReport_CountsResolved(t *testing.T) {
	f := newEngineFixture(t)
	reporter := NewReporter(f.repo)

	f.addLocal("T1", "pending", "100.00")
	f.source.NotFoundIDs["T1"] = true

	run, err := f.engine.PerformBatchReconciliation(context.Background(), "transfer", f.windowStart, f.windowEnd, nil)
	require.NoError(t, err)

	items, _ := f.repo.ListByRun(context.Background(), run.ID)
	require.Len(t, items, 1)
	_, err = f.engine.ResolveDiscrepancy(context.Background(), items[0].ID, domain.Resolution{Type: "manual_review"})
	require.NoError(t, err)

	report, err := reporter.GenerateReport(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Open)
	assert.Equal(t, 1, report.Resolved)
}

func TestGenerateReport_UnknownRun(t *testing.T) {
	f := newEngineFixture(t)
	reporter := NewReporter(f.repo)

	_, err := reporter.GenerateReport(context.Background(), "01JUNKRUNID")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
