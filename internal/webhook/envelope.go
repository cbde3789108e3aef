package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is the wire shape of a Dwolla webhook delivery.
type Envelope struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Links     struct {
		Resource struct {
			Href string `json:"href"`
		} `json:"resource"`
	} `json:"_links"`
	ReturnCode string `json:"returnCode,omitempty"`
}

// ParseEnvelope decodes a raw delivery and derives the resource linkage
// from the HAL resource href (".../transfers/{id}" → type "transfer").
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("webhook payload missing id")
	}
	if env.Topic == "" {
		return nil, fmt.Errorf("webhook payload missing topic")
	}
	return &env, nil
}

// ResourceLinkage extracts (resourceType, resourceID) from the resource
// href. The plural path segment is singularized: /transfers/T1 →
// ("transfer", "T1").
func (e *Envelope) ResourceLinkage() (string, string) {
	href := strings.TrimRight(e.Links.Resource.Href, "/")
	if href == "" {
		return "", ""
	}

	parts := strings.Split(href, "/")
	if len(parts) < 2 {
		return "", ""
	}

	id := parts[len(parts)-1]
	kind := strings.TrimSuffix(parts[len(parts)-2], "s")
	return kind, id
}
