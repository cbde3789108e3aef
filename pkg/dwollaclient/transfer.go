package dwollaclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Transfer struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Amount          Amount    `json:"amount"`
	Created         time.Time `json:"created"`
	IndividualACHID string    `json:"individualAchId"`
}

type transferListResponse struct {
	Embedded struct {
		Transfers []Transfer `json:"transfers"`
	} `json:"_embedded"`
	Total int `json:"total"`
}

// GetTransfer retrieves a transfer by ID.
func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	path := fmt.Sprintf("/transfers/%s", id)

	if cached, ok := c.cache.Get(path); ok {
		if t, ok := cached.(*Transfer); ok {
			return t, nil
		}
	}

	var resp Transfer
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	c.cache.Set(path, &resp)
	return &resp, nil
}

type ListTransfersParams struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// ListTransfers lists account transfers within an optional date window.
func (c *Client) ListTransfers(ctx context.Context, params ListTransfersParams) ([]Transfer, error) {
	query := url.Values{}
	if !params.StartDate.IsZero() {
		query.Set("startDate", params.StartDate.Format("2006-01-02"))
	}
	if !params.EndDate.IsZero() {
		query.Set("endDate", params.EndDate.Format("2006-01-02"))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}

	path := "/transfers"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp transferListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Embedded.Transfers, nil
}

// GetTransferFailure retrieves the ACH failure detail for a transfer.
func (c *Client) GetTransferFailure(ctx context.Context, id string) (*TransferFailure, error) {
	path := fmt.Sprintf("/transfers/%s/failure", id)
	var resp TransferFailure
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type TransferFailure struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}
