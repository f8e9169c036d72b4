package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts finished generation attempts by terminal status.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomin_generations_total",
		Help: "Number of generation attempts by terminal status.",
	}, []string{"status"})

	// CreditsRefundedTotal counts credits returned after failed attempts.
	CreditsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomin_credits_refunded_total",
		Help: "Credits refunded after failed or timed-out generations.",
	})

	// CreditsPurchasedTotal counts credits granted through payment events.
	CreditsPurchasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomin_credits_purchased_total",
		Help: "Credits granted through confirmed payment events.",
	})

	// WebhookEventsTotal counts webhook deliveries by processing result.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomin_webhook_events_total",
		Help: "Payment webhook deliveries by result.",
	}, []string{"result"})
)
