package customer

import (
	"context"
	"time"
)

// VerificationStatus mirrors the Dwolla customer verification state.
type VerificationStatus string

const (
	StatusUnverified  VerificationStatus = "unverified"
	StatusRetry       VerificationStatus = "retry"
	StatusDocument    VerificationStatus = "document"
	StatusVerified    VerificationStatus = "verified"
	StatusSuspended   VerificationStatus = "suspended"
	StatusDeactivated VerificationStatus = "deactivated"
)

// EventEnvelope is one entry in the append-only webhook history.
type EventEnvelope struct {
	EventID    string    `json:"event_id"`
	Topic      string    `json:"topic"`
	ReceivedAt time.Time `json:"received_at"`
}

// Customer is the thin local mirror of a Dwolla customer. Only the
// verification lifecycle is tracked here; the CRM owns the rest.
type Customer struct {
	ID               int64              `json:"id,string"`
	DwollaCustomerID string             `json:"dwolla_customer_id"`
	Status           VerificationStatus `json:"status"`
	WebhookHistory   []EventEnvelope    `json:"webhook_history"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// New creates a mirrored customer in unverified state.
func New(dwollaCustomerID string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		DwollaCustomerID: dwollaCustomerID,
		Status:           StatusUnverified,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SetStatus applies a verification status change.
func (c *Customer) SetStatus(status VerificationStatus) {
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
}

// AppendWebhookEvent appends one raw event envelope to the audit history.
func (c *Customer) AppendWebhookEvent(env EventEnvelope) {
	c.WebhookHistory = append(c.WebhookHistory, env)
	c.UpdatedAt = time.Now().UTC()
}

// Repository persists mirrored customers.
type Repository interface {
	// FindByDwollaID returns (nil, nil) when the customer is not mirrored.
	FindByDwollaID(ctx context.Context, dwollaCustomerID string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
}
