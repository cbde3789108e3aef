package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/customer"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
)

// buildHandlerTable wires every known topic to its handler. Unknown
// topics fall through to the dispatcher's explicit ignore path.
func (d *Dispatcher) buildHandlerTable() map[string]Handler {
	transferTopics := map[string]func(t *transfer.Transfer, env *Envelope){
		"transfer_created": func(t *transfer.Transfer, env *Envelope) {
			// Creation is implicit in the mirror upsert.
		},
		"transfer_pending": func(t *transfer.Transfer, env *Envelope) {
			t.MarkPending()
		},
		"transfer_processed": func(t *transfer.Transfer, env *Envelope) {
			t.MarkProcessed(env.Timestamp)
		},
		"transfer_completed": func(t *transfer.Transfer, env *Envelope) {
			t.MarkCompleted(env.Timestamp)
		},
		"transfer_cancelled": func(t *transfer.Transfer, env *Envelope) {
			t.MarkCancelled()
		},
		"transfer_failed": func(t *transfer.Transfer, env *Envelope) {
			t.MarkFailed("Transfer failed at provider")
		},
		"transfer_returned": func(t *transfer.Transfer, env *Envelope) {
			t.MarkReturned(env.ReturnCode)
		},
		"transfer_reclaimed": func(t *transfer.Transfer, env *Envelope) {
			t.MarkReclaimed()
		},
	}

	customerTopics := map[string]customer.VerificationStatus{
		"customer_created":                      customer.StatusUnverified,
		"customer_verified":                     customer.StatusVerified,
		"customer_reverification_needed":        customer.StatusRetry,
		"customer_verification_document_needed": customer.StatusDocument,
		"customer_suspended":                    customer.StatusSuspended,
		"customer_deactivated":                  customer.StatusDeactivated,
	}

	// Funding-source topics only advance journeys; there is no mirrored
	// funding-source table.
	journeyOnlyTopics := []string{
		"customer_funding_source_added",
		"customer_funding_source_verified",
		"customer_funding_source_removed",
		"customer_microdeposits_added",
		"customer_microdeposits_completed",
		"customer_microdeposits_failed",
	}

	handlers := make(map[string]Handler)

	for topic, mutate := range transferTopics {
		handlers[topic] = d.transferHandler(mutate)
	}
	for topic, status := range customerTopics {
		handlers[topic] = d.customerHandler(status)
	}
	for _, topic := range journeyOnlyTopics {
		handlers[topic] = d.journeyOnlyHandler()
	}

	return handlers
}

// transferHandler upserts the mirrored transfer, applies the
// topic-specific mutation, appends the audit envelope, and advances
// any matching journey.
func (d *Dispatcher) transferHandler(mutate func(*transfer.Transfer, *Envelope)) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		env, err := ParseEnvelope(evt.Payload)
		if err != nil {
			return err
		}

		t, err := d.transfers.FindByDwollaID(ctx, evt.ResourceID)
		if err != nil {
			return fmt.Errorf("load transfer %s: %w", evt.ResourceID, err)
		}
		if t == nil {
			t = transfer.New(evt.ResourceID)
		}

		mutate(t, env)
		t.AppendWebhookEvent(transfer.EventEnvelope{
			EventID:    evt.DwollaEventID,
			Topic:      evt.Topic,
			ReceivedAt: evt.ReceivedAt,
		})

		if err := d.transfers.Save(ctx, t); err != nil {
			return fmt.Errorf("save transfer %s: %w", evt.ResourceID, err)
		}

		return d.advanceJourney(ctx, evt, env)
	}
}

// customerHandler mirrors a customer verification status change.
func (d *Dispatcher) customerHandler(status customer.VerificationStatus) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		c, err := d.customers.FindByDwollaID(ctx, evt.ResourceID)
		if err != nil {
			return fmt.Errorf("load customer %s: %w", evt.ResourceID, err)
		}
		if c == nil {
			c = customer.New(evt.ResourceID)
		}

		c.SetStatus(status)
		c.AppendWebhookEvent(customer.EventEnvelope{
			EventID:    evt.DwollaEventID,
			Topic:      evt.Topic,
			ReceivedAt: evt.ReceivedAt,
		})

		if err := d.customers.Save(ctx, c); err != nil {
			return fmt.Errorf("save customer %s: %w", evt.ResourceID, err)
		}

		env, err := ParseEnvelope(evt.Payload)
		if err != nil {
			return err
		}
		return d.advanceJourney(ctx, evt, env)
	}
}

func (d *Dispatcher) journeyOnlyHandler() Handler {
	return func(ctx context.Context, evt *event.Event) error {
		env, err := ParseEnvelope(evt.Payload)
		if err != nil {
			return err
		}
		return d.advanceJourney(ctx, evt, env)
	}
}

func (d *Dispatcher) advanceJourney(ctx context.Context, evt *event.Event, env *Envelope) error {
	if d.journeys == nil {
		return nil
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = evt.ReceivedAt
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return d.journeys.OnEvent(ctx, evt.ResourceType, evt.ResourceID, evt.Topic, ts, evt.DwollaEventID)
}
