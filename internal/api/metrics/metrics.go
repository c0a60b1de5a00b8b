// Package metrics defines and registers all custom Prometheus metrics for
// the assistant API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default registry at package init; the router
// exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "assistant"

// ── Turn metrics ──────────────────────────────────────────────────────────────

// TurnsStartedTotal counts assistant runs submitted on behalf of callers.
var TurnsStartedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_started_total",
		Help:      "Total number of assistant turns started.",
	},
)

// TurnDuration measures one turn from run start to terminal event.
// Label:
//   - outcome: "completed", "failed", "timeout" or "malformed"
var TurnDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Duration of assistant turns from submission to terminal event.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
	},
	[]string{"outcome"},
)

// ── Quota metrics ─────────────────────────────────────────────────────────────

// QuotaDecisionsTotal counts quota evaluations.
// Label:
//   - result: "allowed", "denied" or "unlimited"
var QuotaDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_decisions_total",
		Help:      "Total number of daily-quota decisions, by result.",
	},
	[]string{"result"},
)

// ── Thread metrics ────────────────────────────────────────────────────────────

// ThreadsCreatedTotal counts threads provisioned on the assistant service.
// Label:
//   - reason: "resolve" (first use) or "reset"
var ThreadsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threads_created_total",
		Help:      "Total number of conversation threads created, by reason.",
	},
	[]string{"reason"},
)

// ── Webhook metrics ───────────────────────────────────────────────────────────

// WebhookEventsTotal counts payment-provider notifications by disposition.
// Labels:
//   - type: the provider event type
//   - result: "applied", "ignored", "unresolved" or "rejected"
//
// "unresolved" is the alerting hook for events acknowledged without a
// matching user.
var WebhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Total number of payment webhook events, by type and result.",
	},
	[]string{"type", "result"},
)

// WebhookDedupTotal counts idempotency-log decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new event, processed)
var WebhookDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_dedup_total",
		Help:      "Total number of webhook deduplication checks, by result (hit/miss).",
	},
	[]string{"result"},
)
