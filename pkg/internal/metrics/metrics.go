package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncup",
		Name:      "active_subscriptions",
		Help:      "Live query subscriptions currently attached.",
	})

	SnapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "snapshots_delivered_total",
		Help:      "Full snapshots handed to subscribers.",
	})

	SubscriptionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "subscription_errors_total",
		Help:      "Listener errors reported by the realtime store.",
	})

	SeenWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "seen_writes_total",
		Help:      "Messages marked as seen by this client.",
	})

	NotificationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "notification_decisions_total",
		Help:      "Inbound push events by gate outcome.",
	}, []string{"outcome"})

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "messages_sent_total",
		Help:      "Outgoing messages by kind and result.",
	}, []string{"kind", "result"})

	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncup",
		Name:      "push_deliveries_total",
		Help:      "Outbound push gateway calls by result.",
	}, []string{"result"})
)
