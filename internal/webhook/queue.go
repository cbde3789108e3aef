package webhook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
)

// QueueProcessor drains queued and failed events, re-invoking the
// dispatcher with a fixed pause between batches. One failing event never
// stops the loop; events past the retry ceiling stay quarantined.
type QueueProcessor struct {
	events     event.Repository
	dispatcher *Dispatcher
	logger     *zap.Logger

	interval    time.Duration
	batchSize   int
	maxAttempts int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// QueueStatus is the operational snapshot exposed over the API.
type QueueStatus struct {
	Active bool                  `json:"active"`
	Counts map[event.State]int64 `json:"counts"`
}

func NewQueueProcessor(cfg *config.Config, events event.Repository, dispatcher *Dispatcher, logger *zap.Logger) *QueueProcessor {
	return &QueueProcessor{
		events:      events,
		dispatcher:  dispatcher,
		logger:      logger.Named("webhook.queue"),
		interval:    cfg.QueuePollInterval,
		batchSize:   cfg.QueueBatchSize,
		maxAttempts: cfg.MaxEventAttempts,
	}
}

// Start launches the retry loop. Calling Start while already active is
// a no-op; there is never a second loop.
func (p *QueueProcessor) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
	p.logger.Info("queue_processor_started")
}

// Stop cancels the loop and waits for the current batch to finish.
func (p *QueueProcessor) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("queue_processor_stopped")
}

// IsActive reports whether the loop is running.
func (p *QueueProcessor) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Status returns the loop state and event counts by processing state.
func (p *QueueProcessor) Status(ctx context.Context) (QueueStatus, error) {
	counts, err := p.events.CountByState(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{Active: p.IsActive(), Counts: counts}, nil
}

func (p *QueueProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := p.processBatch(ctx); err != nil {
		p.logger.Error("queue_initial_poll_failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("queue_poll_failed", zap.Error(err))
			}
		}
	}
}

func (p *QueueProcessor) processBatch(ctx context.Context) error {
	events, err := p.events.ClaimRetryBatch(ctx, p.batchSize, p.maxAttempts)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if ctx.Err() != nil {
			return nil
		}

		queueRetries.Inc()
		res := p.dispatcher.Dispatch(ctx, evt)
		if res.Err != "" {
			p.logger.Warn("queue_retry_failed",
				zap.Int64("event_id", evt.ID),
				zap.String("topic", evt.Topic),
				zap.String("state", string(res.State)),
				zap.String("error", res.Err),
			)
		}
	}

	return nil
}
