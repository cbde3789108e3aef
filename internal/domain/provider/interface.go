package provider

import (
	"context"
	"errors"
)

// ErrNotFound signals that the resource does not exist at the provider.
var ErrNotFound = errors.New("resource not found at provider")

// Transfer is the authoritative view of a transfer at the provider.
type Transfer struct {
	ID       string
	Status   string
	Amount   string
	Currency string
}

// Source fetches authoritative records from the payment provider.
// Implemented by the Dwolla adapter; mocked in tests.
type Source interface {
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
}
