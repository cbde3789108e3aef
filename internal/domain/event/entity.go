package event

import (
	"encoding/json"
	"errors"
	"time"
)

// State represents the processing lifecycle of an inbound webhook event.
type State string

const (
	StateReceived    State = "received"
	StateQueued      State = "queued"
	StateProcessing  State = "processing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateQuarantined State = "quarantined"
)

var (
	// ErrDuplicate signals that an event with the same provider event ID
	// already exists. Duplicate deliveries short-circuit on this.
	ErrDuplicate = errors.New("duplicate provider event")

	ErrNotFound = errors.New("event not found")
)

// Event is the durable record of a single webhook delivery.
// Rows are never deleted; a delivery that exhausts its retries is
// quarantined for manual review.
type Event struct {
	ID                   int64           `json:"id,string"`
	DwollaEventID        string          `json:"dwolla_event_id"`
	Topic                string          `json:"topic"`
	ResourceType         string          `json:"resource_type"`
	ResourceID           string          `json:"resource_id"`
	Payload              json.RawMessage `json:"payload"`
	State                State           `json:"state"`
	Attempts             int             `json:"attempts"`
	LastError            string          `json:"last_error,omitempty"`
	ProcessingDurationMS int64           `json:"processing_duration_ms"`
	CorrelationID        string          `json:"correlation_id"`
	ReceivedAt           time.Time       `json:"received_at"`
	NextAttemptAt        *time.Time      `json:"next_attempt_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// New creates an event in received state from a verified delivery.
func New(dwollaEventID, topic, resourceType, resourceID string, payload json.RawMessage) *Event {
	now := time.Now().UTC()
	return &Event{
		DwollaEventID: dwollaEventID,
		Topic:         topic,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Payload:       payload,
		State:         StateReceived,
		ReceivedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Terminal reports whether the event can no longer change state
// through automatic processing.
func (e *Event) Terminal() bool {
	return e.State == StateCompleted || e.State == StateQuarantined
}

// Retryable reports whether the event sits in a retry state below the
// attempt ceiling. Stranded received/processing rows are recovered
// separately, after the repository grace windows.
func (e *Event) Retryable(maxAttempts int) bool {
	if e.State != StateQueued && e.State != StateFailed {
		return false
	}
	return e.Attempts < maxAttempts
}
