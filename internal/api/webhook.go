package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	"github.com/jonathanmorav/unified-dashboard/internal/webhook"
	"github.com/jonathanmorav/unified-dashboard/pkg/telemetry/correlation"
)

const signatureHeader = "X-Request-Signature-SHA-256"

// maxWebhookBody caps how much of a delivery is read before signature
// verification.
const maxWebhookBody = 1 << 20

// HandleDwollaWebhook is the ingestion entrypoint. Verification happens
// on the exact raw bytes before anything is persisted; a delivery that
// fails the signature leaves no trace beyond a log line. Persisted
// deliveries are acknowledged 200 regardless of processing outcome so
// the provider never re-sends an event we already own.
func (r *Router) HandleDwollaWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(signatureHeader)
	if signature == "" {
		signature = c.GetHeader("X-Provider-Signature")
	}

	if !webhook.VerifySignature(raw, signature, r.cfg.WebhookSecret) {
		webhook.RecordSignatureRejected()
		r.logger.Warn("webhook_signature_rejected",
			zap.String("ip", c.ClientIP()),
			zap.Int("body_bytes", len(raw)),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	env, err := webhook.ParseEnvelope(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	resourceType, resourceID := env.ResourceLinkage()

	evt := event.New(env.ID, env.Topic, resourceType, resourceID, raw)
	evt.ID = r.ids.GenerateID()
	evt.CorrelationID = correlation.ExtractCorrelationID(ctx)

	if err := r.events.Insert(ctx, evt); err != nil {
		if errors.Is(err, event.ErrDuplicate) {
			r.handleDuplicate(c, env.ID)
			return
		}
		r.logger.Error("webhook_event_insert_failed", zap.Error(err), zap.String("dwolla_event_id", env.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persist failed"})
		return
	}
	webhook.RecordReceived(env.Topic)

	res := r.dispatcher.Dispatch(ctx, evt)
	c.JSON(http.StatusOK, res)
}

// handleDuplicate acknowledges a re-delivery. A completed original is a
// pure no-op; an incomplete one gets another dispatch attempt inline.
func (r *Router) handleDuplicate(c *gin.Context, dwollaEventID string) {
	ctx := c.Request.Context()

	existing, err := r.events.FindByDwollaID(ctx, dwollaEventID)
	if err != nil {
		r.logger.Error("webhook_duplicate_lookup_failed", zap.Error(err), zap.String("dwolla_event_id", dwollaEventID))
		c.JSON(http.StatusOK, gin.H{"duplicate": true})
		return
	}

	if existing.Terminal() {
		c.JSON(http.StatusOK, webhook.Result{
			EventID:   existing.ID,
			State:     existing.State,
			Duplicate: true,
		})
		return
	}

	res := r.dispatcher.Dispatch(ctx, existing)
	res.Duplicate = true
	c.JSON(http.StatusOK, res)
}
