package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Inbound webhook events persisted, by topic.",
	}, []string{"topic"})

	eventsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_completed_total",
		Help: "Events processed to completion.",
	})

	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_failed_total",
		Help: "Handler failures recorded on events.",
	})

	eventsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_quarantined_total",
		Help: "Events that exhausted the retry ceiling.",
	})

	queueRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_queue_retries_total",
		Help: "Retry dispatches performed by the queue processor.",
	})

	signatureRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_rejected_total",
		Help: "Deliveries rejected for a missing or invalid signature.",
	})
)

// RecordReceived counts a persisted inbound delivery.
func RecordReceived(topic string) {
	eventsReceived.WithLabelValues(topic).Inc()
}

// RecordSignatureRejected counts a delivery rejected before persistence.
func RecordSignatureRejected() {
	signatureRejected.Inc()
}
