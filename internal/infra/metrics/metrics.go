package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Verified provider events by type and outcome (applied/stale/skipped/error).",
		},
		[]string{"type", "outcome"},
	)

	webhookVerifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_verify_failures_total",
			Help: "Inbound payloads rejected by signature or timestamp checks.",
		},
	)

	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout initiations by result (created/rejected/error).",
		},
		[]string{"result"},
	)

	accessSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_sync_total",
			Help: "Access sync calls by action (grant/revoke) and result.",
		},
		[]string{"action", "result"},
	)

	accessRetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "access_retry_queue_depth",
			Help: "Pending access sync retries in the queue.",
		},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			webhookEventsTotal, webhookVerifyFailures,
			checkoutsTotal, accessSyncTotal, accessRetryQueueDepth,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Webhook helpers --------

func ObserveWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func IncVerifyFailure() { webhookVerifyFailures.Inc() }

// -------- Checkout helpers --------

func IncCheckout(result string) {
	checkoutsTotal.WithLabelValues(norm(result)).Inc()
}

// -------- Access sync helpers --------

func ObserveAccessSync(granted bool, result string) {
	action := "revoke"
	if granted {
		action = "grant"
	}
	accessSyncTotal.WithLabelValues(action, norm(result)).Inc()
}

func SetRetryQueueDepth(n int64) { accessRetryQueueDepth.Set(float64(n)) }
