package transfer

import (
	"errors"
	"time"
)

// Status represents the mirrored lifecycle state of a Dwolla transfer.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	StatusReturned  Status = "returned"
	StatusReclaimed Status = "reclaimed"
)

var ErrNotFound = errors.New("transfer not found")

// EventEnvelope is one entry in the append-only webhook history of a
// mirrored resource.
type EventEnvelope struct {
	EventID    string    `json:"event_id"`
	Topic      string    `json:"topic"`
	ReceivedAt time.Time `json:"received_at"`
}

// Transfer is the local mirror of a Dwolla transfer. The authoritative
// copy lives at the provider; reconciliation keeps this one honest.
type Transfer struct {
	ID               int64           `json:"id,string"`
	DwollaTransferID string          `json:"dwolla_transfer_id"`
	DwollaCustomerID string          `json:"dwolla_customer_id"`
	Amount           string          `json:"amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	ReturnCode       string          `json:"return_code,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	ClearedAt        *time.Time      `json:"cleared_at,omitempty"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	WebhookHistory   []EventEnvelope `json:"webhook_history"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// New creates a mirrored transfer in created state.
func New(dwollaTransferID string) *Transfer {
	now := time.Now().UTC()
	return &Transfer{
		DwollaTransferID: dwollaTransferID,
		Status:           StatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MarkPending transitions the transfer to pending.
func (t *Transfer) MarkPending() {
	t.Status = StatusPending
	t.UpdatedAt = time.Now().UTC()
}

// MarkProcessed records ACH processing.
func (t *Transfer) MarkProcessed(at time.Time) {
	t.Status = StatusProcessed
	t.ProcessedAt = &at
	t.UpdatedAt = time.Now().UTC()
}

// MarkCompleted records clearing.
func (t *Transfer) MarkCompleted(at time.Time) {
	t.Status = StatusCompleted
	t.ClearedAt = &at
	t.UpdatedAt = time.Now().UTC()
}

// MarkCancelled transitions the transfer to cancelled.
func (t *Transfer) MarkCancelled() {
	t.Status = StatusCancelled
	t.UpdatedAt = time.Now().UTC()
}

// MarkFailed transitions the transfer to failed.
func (t *Transfer) MarkFailed(reason string) {
	t.Status = StatusFailed
	t.FailureReason = reason
	t.UpdatedAt = time.Now().UTC()
}

// MarkReturned records an ACH return with its code and the
// human-readable reason from the return-code table.
func (t *Transfer) MarkReturned(code string) {
	t.Status = StatusReturned
	t.ReturnCode = code
	t.FailureReason = ReturnReason(code)
	t.UpdatedAt = time.Now().UTC()
}

// MarkReclaimed transitions the transfer to reclaimed.
func (t *Transfer) MarkReclaimed() {
	t.Status = StatusReclaimed
	t.UpdatedAt = time.Now().UTC()
}

// AppendWebhookEvent appends one raw event envelope to the audit history.
func (t *Transfer) AppendWebhookEvent(env EventEnvelope) {
	t.WebhookHistory = append(t.WebhookHistory, env)
	t.UpdatedAt = time.Now().UTC()
}
