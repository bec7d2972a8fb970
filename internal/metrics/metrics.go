// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "laundry_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_order_operations_total",
			Help: "Total number of order operations by outcome",
		},
		[]string{"operation", "status"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_order_status_transitions_total",
			Help: "Order status transitions observed on the order events topic",
		},
		[]string{"from", "to"},
	)

	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_orders_created_total",
			Help: "Orders created, observed on the order events topic",
		},
		[]string{"order_type"},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundry_notification_failures_total",
			Help: "Notifications that could not be enqueued",
		},
		[]string{"kind"},
	)
)

// RecordOrderOperation counts one order operation outcome
func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

func RecordStatusTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	statusTransitions.WithLabelValues(from, to).Inc()
}

func RecordOrderCreated(orderType string) {
	ordersCreated.WithLabelValues(orderType).Inc()
}

func RecordNotificationFailure(kind string) {
	notificationFailures.WithLabelValues(kind).Inc()
}

// OrderOperations exposes the collector for tests
func OrderOperations() *prometheus.CounterVec { return orderOperations }

// StatusTransitions exposes the collector for tests
func StatusTransitions() *prometheus.CounterVec { return statusTransitions }

// OrdersCreated exposes the collector for tests
func OrdersCreated() *prometheus.CounterVec { return ordersCreated }

// NotificationFailures exposes the collector for tests
func NotificationFailures() *prometheus.CounterVec { return notificationFailures }
