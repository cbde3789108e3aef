package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/provider"
	domain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
	"github.com/jonathanmorav/unified-dashboard/pkg/snowflake"
)

// BatchConfig tunes how aggressively a run hits the provider API.
type BatchConfig struct {
	BatchSize  int           `json:"batchSize"`
	BatchDelay time.Duration `json:"batchDelayMs"`
}

// Engine compares mirrored transfers against the provider for a time
// window, records discrepancies, and supports manual and automatic
// resolution. Provider fetches are batched with a configurable pause so
// the sweep backs off cooperatively instead of hammering the API.
type Engine struct {
	repo      domain.Repository
	transfers transfer.Repository
	source    provider.Source
	ids       *snowflake.Node
	logger    *zap.Logger

	defaults BatchConfig
	paused   atomic.Bool
}

func NewEngine(
	cfg *config.Config,
	repo domain.Repository,
	transfers transfer.Repository,
	source provider.Source,
	ids *snowflake.Node,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		repo:      repo,
		transfers: transfers,
		source:    source,
		ids:       ids,
		logger:    logger.Named("reconciliation.engine"),
		defaults: BatchConfig{
			BatchSize:  cfg.ReconBatchSize,
			BatchDelay: cfg.ReconBatchDelay,
		},
	}
}

// Pause suspends batch processing cooperatively; the run loop spins on a
// short sleep until resumed or the context is cancelled.
func (e *Engine) Pause()         { e.paused.Store(true) }
func (e *Engine) Resume()        { e.paused.Store(false) }
func (e *Engine) IsPaused() bool { return e.paused.Load() }

// PerformBatchReconciliation sweeps one resource type over [start, end].
// The run record always closes: completed with full metrics, or failed
// with whatever partial metrics accumulated.
func (e *Engine) PerformBatchReconciliation(ctx context.Context, resourceType string, start, end time.Time, cfg *BatchConfig) (*domain.Run, error) {
	if resourceType != "transfer" {
		return nil, fmt.Errorf("unsupported resource type %q", resourceType)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("invalid window: end %s is not after start %s", end, start)
	}

	batch := e.defaults
	if cfg != nil {
		if cfg.BatchSize > 0 {
			batch.BatchSize = cfg.BatchSize
		}
		if cfg.BatchDelay > 0 {
			batch.BatchDelay = cfg.BatchDelay
		}
	}
	if batch.BatchSize <= 0 {
		batch.BatchSize = 25
	}

	run := domain.NewRun(ulid.Make().String(), resourceType, start, end)
	if err := e.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("open reconciliation run: %w", err)
	}

	e.logger.Info("reconciliation_run_started",
		zap.String("run_id", run.ID),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	if err := e.sweep(ctx, run, batch); err != nil {
		run.Close(domain.RunFailed, err.Error())
		if saveErr := e.repo.SaveRun(ctx, run); saveErr != nil {
			e.logger.Error("reconciliation_run_close_failed", zap.Error(saveErr), zap.String("run_id", run.ID))
		}
		return run, err
	}

	run.Close(domain.RunCompleted, "")
	if err := e.repo.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("close reconciliation run: %w", err)
	}

	e.logger.Info("reconciliation_run_completed",
		zap.String("run_id", run.ID),
		zap.Int("total_checks", run.TotalChecks),
		zap.Int("discrepancies_found", run.DiscrepanciesFound),
		zap.Int("discrepancies_resolved", run.DiscrepanciesResolved),
	)
	return run, nil
}

// PerformCatchUpReconciliation backfills trailing day-sized windows from
// daysBack days ago to now. Individual window failures are recorded on
// their runs and do not stop the backfill.
func (e *Engine) PerformCatchUpReconciliation(ctx context.Context, resourceType string, daysBack int) ([]*domain.Run, error) {
	if daysBack <= 0 {
		return nil, fmt.Errorf("daysBack must be positive, got %d", daysBack)
	}

	now := time.Now().UTC()
	runs := make([]*domain.Run, 0, daysBack)

	for day := daysBack; day > 0; day-- {
		if ctx.Err() != nil {
			return runs, ctx.Err()
		}

		start := now.AddDate(0, 0, -day)
		end := start.AddDate(0, 0, 1)
		if end.After(now) {
			end = now
		}

		run, err := e.PerformBatchReconciliation(ctx, resourceType, start, end, nil)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			e.logger.Warn("catchup_window_failed",
				zap.Error(err),
				zap.Time("window_start", start),
				zap.Time("window_end", end),
			)
		}
	}

	return runs, nil
}

func (e *Engine) sweep(ctx context.Context, run *domain.Run, batch BatchConfig) error {
	items, err := e.transfers.ListCreatedBetween(ctx, run.WindowStart, run.WindowEnd)
	if err != nil {
		return fmt.Errorf("list mirrored transfers: %w", err)
	}

	for i := 0; i < len(items); i += batch.BatchSize {
		if err := e.waitIfPaused(ctx); err != nil {
			return err
		}

		endIdx := i + batch.BatchSize
		if endIdx > len(items) {
			endIdx = len(items)
		}

		for _, t := range items[i:endIdx] {
			if err := e.checkTransfer(ctx, run, t); err != nil {
				return err
			}
		}

		if endIdx < len(items) && batch.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batch.BatchDelay):
			}
		}
	}

	return nil
}

// waitIfPaused implements the cooperative pause: spin on a short sleep
// until resumed or aborted.
func (e *Engine) waitIfPaused(ctx context.Context) error {
	for e.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return ctx.Err()
}

func (e *Engine) checkTransfer(ctx context.Context, run *domain.Run, t *transfer.Transfer) error {
	remote, err := e.source.GetTransfer(ctx, t.DwollaTransferID)

	run.TotalChecks++
	checksRun.Inc()

	if err != nil {
		if err == provider.ErrNotFound || strings.Contains(err.Error(), provider.ErrNotFound.Error()) {
			return e.applyCheck(ctx, run, t, domain.CheckExists, false,
				fmt.Sprintf("transfer %s mirrored locally but missing at provider", t.DwollaTransferID))
		}
		// A provider fetch error is unrecoverable for this run; the
		// caller closes it failed with partial metrics.
		return fmt.Errorf("fetch transfer %s from provider: %w", t.DwollaTransferID, err)
	}

	if err := e.applyCheck(ctx, run, t, domain.CheckExists, true, ""); err != nil {
		return err
	}

	run.TotalChecks++
	checksRun.Inc()
	statusOK := strings.EqualFold(string(t.Status), remote.Status)
	if err := e.applyCheck(ctx, run, t, domain.CheckStatusMatch, statusOK,
		fmt.Sprintf("local status %q, provider status %q", t.Status, remote.Status)); err != nil {
		return err
	}

	run.TotalChecks++
	checksRun.Inc()
	amountOK := t.Amount == "" || t.Amount == remote.Amount
	return e.applyCheck(ctx, run, t, domain.CheckAmountMatch, amountOK,
		fmt.Sprintf("local amount %q, provider amount %q", t.Amount, remote.Amount))
}

// applyCheck opens a discrepancy for a failed check, reusing any open
// one for the same (resource, check) pair, and auto-resolves an open
// discrepancy once the check passes again.
func (e *Engine) applyCheck(ctx context.Context, run *domain.Run, t *transfer.Transfer, checkName string, passed bool, details string) error {
	open, err := e.repo.FindOpenDiscrepancy(ctx, run.ResourceType, t.DwollaTransferID, checkName)
	if err != nil {
		return fmt.Errorf("lookup open discrepancy: %w", err)
	}

	if passed {
		if open == nil {
			return nil
		}
		open.Resolve(domain.Resolution{
			Type: "auto_recheck",
			Note: fmt.Sprintf("check passed during run %s", run.ID),
		})
		if err := e.repo.SaveDiscrepancy(ctx, open); err != nil {
			return fmt.Errorf("auto-resolve discrepancy: %w", err)
		}
		run.DiscrepanciesResolved++
		discrepanciesResolved.WithLabelValues("auto_recheck").Inc()
		return nil
	}

	if open != nil {
		// Already open for this pair: no duplicate, keep the details fresh.
		open.Details = details
		return e.repo.SaveDiscrepancy(ctx, open)
	}

	d := domain.NewDiscrepancy(e.ids.GenerateID(), run.ID, run.ResourceType, t.DwollaTransferID, checkName, details)
	if err := e.repo.SaveDiscrepancy(ctx, d); err != nil {
		return fmt.Errorf("record discrepancy: %w", err)
	}
	run.DiscrepanciesFound++
	discrepanciesFound.WithLabelValues(string(d.Severity)).Inc()

	e.logger.Warn("discrepancy_detected",
		zap.String("run_id", run.ID),
		zap.String("resource_id", t.DwollaTransferID),
		zap.String("check", checkName),
		zap.String("severity", string(d.Severity)),
	)
	return nil
}

// ResolveDiscrepancy applies an operator resolution. A second resolve of
// an already-resolved discrepancy is a no-op returning the existing
// record, not an error.
func (e *Engine) ResolveDiscrepancy(ctx context.Context, id int64, res domain.Resolution) (*domain.Discrepancy, error) {
	d, err := e.repo.FindDiscrepancy(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return d, nil
	}

	d.Resolve(res)
	if err := e.repo.SaveDiscrepancy(ctx, d); err != nil {
		return nil, fmt.Errorf("save resolution: %w", err)
	}
	discrepanciesResolved.WithLabelValues(res.Type).Inc()

	e.logger.Info("discrepancy_resolved",
		zap.Int64("discrepancy_id", id),
		zap.String("type", res.Type),
	)
	return d, nil
}

// ListRunsSince returns the run history for the report endpoint.
func (e *Engine) ListRunsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Run, error) {
	return e.repo.ListRunsSince(ctx, since, limit)
}
