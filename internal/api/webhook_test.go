package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	"github.com/jonathanmorav/unified-dashboard/internal/webhook"
)

func webhookPayload(eventID, topic, resourceKind, resourceID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"topic": %q,
		"timestamp": "2026-09-01T12:00:00Z",
		"_links": {
			"resource": {"href": "https://api.dwolla.com/%ss/%s"}
		}
	}`, eventID, topic, resourceKind, resourceID)
}

func signedWebhookRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Signature-SHA-256", webhook.SignPayload([]byte(body), testWebhookSecret))
	return req
}

func TestHandleWebhook_RejectsInvalidSignature(t *testing.T) {
	f := newRouterFixture(t)

	body := webhookPayload("evt-1", "transfer_created", "transfer", "T1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/dwolla", strings.NewReader(body))
	req.Header.Set("X-Request-Signature-SHA-256", "deadbeef")

	rec := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// Nothing is persisted for an unverified delivery.
	assert.Equal(t, 0, f.events.count())
}

func TestHandleWebhook_RejectsMissingSignature(t *testing.T) {
	f := newRouterFixture(t)

	body := webhookPayload("evt-1", "transfer_created", "transfer", "T1")
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/dwolla", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.events.count())
}

func TestHandleWebhook_PersistsAndDispatches(t *testing.T) {
	f := newRouterFixture(t)

	body := webhookPayload("evt-1", "transfer_created", "transfer", "T1")
	rec := f.do(signedWebhookRequest("/api/v1/webhooks/dwolla", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res webhook.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, event.StateCompleted, res.State)
	assert.False(t, res.Duplicate)

	stored, err := f.events.FindByDwollaID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, event.StateCompleted, stored.State)

	mirrored, err := f.transfers.FindByDwollaID(context.Background(), "T1")
	require.NoError(t, err)
	require.NotNil(t, mirrored)
}

func TestHandleWebhook_DuplicateDeliveryIsAcknowledged(t *testing.T) {
	f := newRouterFixture(t)

	body := webhookPayload("evt-1", "transfer_created", "transfer", "T1")
	rec := f.do(signedWebhookRequest("/api/v1/webhooks/dwolla", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(signedWebhookRequest("/api/v1/webhooks/dwolla", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res webhook.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Duplicate)
	assert.Equal(t, event.StateCompleted, res.State)

	// Only one row for the provider event.
	assert.Equal(t, 1, f.events.count())
}

func TestHandleWebhook_LegacyPath(t *testing.T) {
	f := newRouterFixture(t)

	body := webhookPayload("evt-1", "transfer_created", "transfer", "T1")
	rec := f.do(signedWebhookRequest("/webhooks/dwolla", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.events.count())
}

func TestHandleWebhook_MalformedEnvelope(t *testing.T) {
	f := newRouterFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"missing id", `{"topic": "transfer_created"}`},
		{"missing topic", `{"id": "evt-1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(signedWebhookRequest("/api/v1/webhooks/dwolla", tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Equal(t, 0, f.events.count())
}

func TestHealth(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
