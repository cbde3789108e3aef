package journey

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
)

// Sweeper periodically runs the stuck-instance sweep.
type Sweeper struct {
	engine    *Engine
	logger    *zap.Logger
	interval  time.Duration
	threshold time.Duration
	batchSize int
}

func NewSweeper(cfg *config.Config, engine *Engine, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		engine:    engine,
		logger:    logger.Named("journey.sweeper"),
		interval:  cfg.SweepInterval,
		threshold: cfg.StuckThreshold,
		batchSize: cfg.SweepBatchSize,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	if err := s.sweep(ctx); err != nil {
		s.logger.Error("sweep_initial_failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("sweep_failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	flagged, err := s.engine.SweepStuck(ctx, s.threshold, s.batchSize)
	if err != nil {
		return err
	}
	if flagged > 0 {
		s.logger.Info("sweep_flagged_stuck", zap.Int("count", flagged))
	}
	return nil
}
