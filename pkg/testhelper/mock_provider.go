package testhelper

import (
	"context"
	"fmt"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/provider"
)

// MockTransferSource is an in-memory provider.Source for testing.
type MockTransferSource struct {
	Transfers   map[string]*provider.Transfer
	NotFoundIDs map[string]bool
	ShouldFail  bool
	Calls       []string
}

func NewMockTransferSource() *MockTransferSource {
	return &MockTransferSource{
		Transfers:   make(map[string]*provider.Transfer),
		NotFoundIDs: make(map[string]bool),
	}
}

// GetTransfer mocks the provider lookup.
func (m *MockTransferSource) GetTransfer(ctx context.Context, id string) (*provider.Transfer, error) {
	m.Calls = append(m.Calls, id)
	if m.ShouldFail {
		return nil, fmt.Errorf("mock provider: upstream unavailable")
	}
	if m.NotFoundIDs[id] {
		return nil, provider.ErrNotFound
	}
	if t, ok := m.Transfers[id]; ok {
		return t, nil
	}
	return nil, provider.ErrNotFound
}
