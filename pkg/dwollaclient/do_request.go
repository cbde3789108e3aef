package dwollaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	// GETs are safe to retry; writes go through once.
	safe := method == http.MethodGet

	return c.breaker.Execute(func() error {
		return c.retry.Do(ctx, safe, func() error {
			return c.doOnce(ctx, method, path, body, out)
		})
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	url := c.cfg.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.dwolla.v1.hal+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.dwolla.v1.hal+json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return &APIError{Status: resp.StatusCode, Message: resp.Status}
		}
		return &APIError{Status: resp.StatusCode, Message: string(bodyBytes)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
