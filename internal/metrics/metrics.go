package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	vendorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "vendor_requests_total",
			Help:      "Vendor API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "sync_tasks_total",
			Help:      "Sync queue tasks by kind and status transition.",
		},
		[]string{"kind", "status"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staysync",
			Name:      "sync_task_duration_seconds",
			Help:      "Sync job handler duration by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"kind"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "webhook_events_total",
			Help:      "Inbound vendor webhook events by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staysync",
			Name:      "api_requests_total",
			Help:      "HTTP API requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(vendorRequests, syncTasks, taskDuration, webhookEvents, apiRequests)
	})
}

func IncVendorRequest(endpoint, outcome string) {
	vendorRequests.WithLabelValues(endpoint, outcome).Inc()
}

func IncTask(kind, status string) {
	syncTasks.WithLabelValues(kind, status).Inc()
}

func ObserveTaskDuration(kind string, d time.Duration) {
	taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func IncWebhook(kind, outcome string) {
	webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func IncAPIRequest(method, path string, status int) {
	apiRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
