package transfer

import (
	"context"
	"time"
)

// Repository persists mirrored transfers.
type Repository interface {
	// FindByDwollaID retrieves a transfer by its provider ID. Returns
	// (nil, nil) when the transfer is not mirrored locally.
	FindByDwollaID(ctx context.Context, dwollaTransferID string) (*Transfer, error)

	// Save persists a transfer (create or update).
	Save(ctx context.Context, t *Transfer) error

	// ListCreatedBetween retrieves mirrored transfers whose creation
	// timestamp falls in [start, end], for reconciliation sweeps.
	ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*Transfer, error)
}
