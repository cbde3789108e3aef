package dwollaclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Created   time.Time `json:"created"`
}

// GetCustomer retrieves a customer by ID.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	path := fmt.Sprintf("/customers/%s", id)

	if cached, ok := c.cache.Get(path); ok {
		if cust, ok := cached.(*Customer); ok {
			return cust, nil
		}
	}

	var resp Customer
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	c.cache.Set(path, &resp)
	return &resp, nil
}
