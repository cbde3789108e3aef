package dwolla

import (
	"context"
	"errors"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/provider"
	"github.com/jonathanmorav/unified-dashboard/pkg/dwollaclient"
)

// Adapter exposes the Dwolla API client as the reconciliation provider
// source.
type Adapter struct {
	client *dwollaclient.Client
}

func NewAdapter(client *dwollaclient.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) GetTransfer(ctx context.Context, id string) (*provider.Transfer, error) {
	t, err := a.client.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, dwollaclient.ErrNotFound) {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	return &provider.Transfer{
		ID:       t.ID,
		Status:   t.Status,
		Amount:   t.Amount.Value,
		Currency: t.Amount.Currency,
	}, nil
}
