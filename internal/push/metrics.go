package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_messages_received_total",
		Help: "Total messages received by the worker, by transport path.",
	}, []string{"path"})

	parseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_payload_parse_failures_total",
		Help: "Total raw push payloads that failed to parse.",
	})

	notificationsPresented = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_notifications_presented_total",
		Help: "Total notifications shown on the tray, by kind.",
	}, []string{"kind"})

	foregroundDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_foreground_deliveries_total",
		Help: "Total messages delivered in-app to a focused window instead of the tray.",
	})

	duplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_duplicate_deliveries_suppressed_total",
		Help: "Total messages suppressed because another delivery path already presented them.",
	})

	clicksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_clicks_resolved_total",
		Help: "Total notification clicks resolved, by matched routing rule.",
	}, []string{"rule"})

	windowsFocused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_windows_focused_total",
		Help: "Total clicks resolved by focusing an already-open window.",
	})

	windowsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_windows_opened_total",
		Help: "Total clicks resolved by opening a new window.",
	})
)
