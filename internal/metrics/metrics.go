// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the notification fan-out pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Notification pipeline metrics
	NotificationsSent       *prometheus.CounterVec
	NotificationsDeduped    *prometheus.CounterVec
	NotificationsFailed     *prometheus.CounterVec
	BroadcastInsertsTotal   prometheus.Counter
	MentionsResolvedTotal   prometheus.Counter
	MentionsUnresolvedTotal prometheus.Counter

	// Delivery channel metrics
	WSActiveConnections prometheus.Gauge
	WSMessagesDelivered prometheus.Counter

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the metrics singleton, registering all collectors on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path", "status"},
			),
			NotificationsSent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_sent_total",
					Help: "Notifications persisted and pushed, by kind",
				},
				[]string{"kind"},
			),
			NotificationsDeduped: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_deduped_total",
					Help: "Notifications suppressed by the dedup window, by kind",
				},
				[]string{"kind"},
			),
			NotificationsFailed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_failed_total",
					Help: "Notification sends that failed at persistence or delivery, by stage",
				},
				[]string{"stage"},
			),
			BroadcastInsertsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "notification_broadcast_inserts_total",
					Help: "Durable notification records created by broadcast fan-out",
				},
			),
			MentionsResolvedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "mentions_resolved_total",
					Help: "Mention candidates that resolved to a user",
				},
			),
			MentionsUnresolvedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "mentions_unresolved_total",
					Help: "Mention candidates with no matching user",
				},
			),
			WSActiveConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ws_active_connections",
					Help: "Currently open WebSocket connections",
				},
			),
			WSMessagesDelivered: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ws_messages_delivered_total",
					Help: "Messages pushed to WebSocket clients",
				},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by rate limiting",
				},
				[]string{"endpoint"},
			),
		}
	})
	return instance
}
