package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/customer"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
	"github.com/jonathanmorav/unified-dashboard/internal/journey"
)

// Handler processes one verified, persisted event.
type Handler func(ctx context.Context, evt *event.Event) error

// Result reports the outcome of a single dispatch.
type Result struct {
	EventID   int64       `json:"event_id,string"`
	State     event.State `json:"state"`
	Duplicate bool        `json:"duplicate,omitempty"`
	Ignored   bool        `json:"ignored,omitempty"`
	Err       string      `json:"error,omitempty"`
}

// Dispatcher routes events by topic through a fixed handler table,
// guards idempotency, and converts handler failures into event state
// transitions. It never panics out of a single event.
type Dispatcher struct {
	events    event.Repository
	transfers transfer.Repository
	customers customer.Repository
	journeys  *journey.Engine
	logger    *zap.Logger

	maxAttempts    int
	retryBaseDelay time.Duration

	handlers map[string]Handler
}

func NewDispatcher(
	cfg *config.Config,
	events event.Repository,
	transfers transfer.Repository,
	customers customer.Repository,
	journeys *journey.Engine,
	logger *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		events:         events,
		transfers:      transfers,
		customers:      customers,
		journeys:       journeys,
		logger:         logger.Named("webhook.dispatcher"),
		maxAttempts:    cfg.MaxEventAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
	d.handlers = d.buildHandlerTable()
	return d
}

// Topics returns the topics with a registered handler.
func (d *Dispatcher) Topics() []string {
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch processes one persisted event. Re-dispatching a completed
// event is a no-op: same mirrored state, no new side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *event.Event) Result {
	if evt.State == event.StateCompleted {
		return Result{EventID: evt.ID, State: evt.State, Duplicate: true}
	}
	if evt.State == event.StateQuarantined {
		return Result{EventID: evt.ID, State: evt.State, Err: evt.LastError}
	}

	handler, ok := d.handlers[evt.Topic]
	if !ok {
		// Unknown topics are acknowledged, not failed. The raw event
		// stays in the audit log.
		d.logger.Info("webhook_topic_ignored",
			zap.String("topic", evt.Topic),
			zap.String("dwolla_event_id", evt.DwollaEventID),
		)
		if err := d.events.MarkCompleted(ctx, evt.ID, 0); err != nil {
			d.logger.Error("webhook_event_ack_failed", zap.Error(err), zap.Int64("event_id", evt.ID))
		}
		evt.State = event.StateCompleted
		return Result{EventID: evt.ID, State: event.StateCompleted, Ignored: true}
	}

	if err := d.events.MarkProcessing(ctx, evt.ID); err != nil {
		d.logger.Error("webhook_event_claim_failed", zap.Error(err), zap.Int64("event_id", evt.ID))
		return Result{EventID: evt.ID, State: evt.State, Err: err.Error()}
	}

	start := time.Now()
	err := d.invoke(ctx, handler, evt)
	duration := time.Since(start)

	if err == nil {
		if markErr := d.events.MarkCompleted(ctx, evt.ID, duration); markErr != nil {
			d.logger.Error("webhook_event_complete_failed", zap.Error(markErr), zap.Int64("event_id", evt.ID))
		}
		evt.State = event.StateCompleted
		eventsCompleted.Inc()
		return Result{EventID: evt.ID, State: event.StateCompleted}
	}

	return d.recordFailure(ctx, evt, err)
}

// invoke shields the dispatcher from a panicking handler.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, evt)
}

func (d *Dispatcher) recordFailure(ctx context.Context, evt *event.Event, cause error) Result {
	attempts := evt.Attempts + 1
	evt.Attempts = attempts
	evt.LastError = cause.Error()
	eventsFailed.Inc()

	d.logger.Warn("webhook_event_handler_failed",
		zap.Error(cause),
		zap.String("topic", evt.Topic),
		zap.String("dwolla_event_id", evt.DwollaEventID),
		zap.Int("attempts", attempts),
	)

	if attempts >= d.maxAttempts {
		if err := d.events.MarkQuarantined(ctx, evt.ID, attempts, cause.Error()); err != nil {
			d.logger.Error("webhook_event_quarantine_failed", zap.Error(err), zap.Int64("event_id", evt.ID))
		}
		evt.State = event.StateQuarantined
		eventsQuarantined.Inc()
		return Result{EventID: evt.ID, State: event.StateQuarantined, Err: cause.Error()}
	}

	nextAttempt := time.Now().UTC().Add(retryDelay(d.retryBaseDelay, attempts))
	if err := d.events.MarkFailed(ctx, evt.ID, attempts, cause.Error(), nextAttempt); err != nil {
		d.logger.Error("webhook_event_fail_mark_failed", zap.Error(err), zap.Int64("event_id", evt.ID))
	}
	evt.State = event.StateFailed
	return Result{EventID: evt.ID, State: event.StateFailed, Err: cause.Error()}
}

// retryDelay grows with the attempt count and caps at five minutes.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 10 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	maxDelay := 5 * time.Minute
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}

	d := base * time.Duration(1<<shift)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
