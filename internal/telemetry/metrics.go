package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CyclesTotal counts finished pipeline cycles by status
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "cycles_total",
			Help:      "Total number of pipeline cycles by final status",
		},
		[]string{"status"},
	)

	// StageDuration observes how long each pipeline stage runs
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvewatch",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	// FeedRecords counts CVE records staged by the refresh stage
	FeedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "feed_records_total",
			Help:      "Total number of CVE records fetched from the feed",
		},
	)

	// ChangesDetected counts Change records created
	ChangesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "changes_detected_total",
			Help:      "Total number of CVE changes detected",
		},
	)

	// EventsDetected counts events by type
	EventsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "events_detected_total",
			Help:      "Total number of change events by type",
		},
		[]string{"type"},
	)

	// AlertsCreated counts alert rows inserted (duplicates excluded)
	AlertsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created",
		},
	)

	// AlertsDelivered counts alerts handed to a notifier
	AlertsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "alerts_delivered_total",
			Help:      "Total number of alerts delivered",
		},
		[]string{"notifier"},
	)

	// DispatchErrors counts per-user failures skipped by the dispatcher
	DispatchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "dispatch_errors_total",
			Help:      "Total number of per-user dispatch failures",
		},
	)

	// ProductsRepaired counts catalog products touched by the repair pass
	ProductsRepaired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvewatch",
			Name:      "products_repaired_total",
			Help:      "Total number of products repaired or flagged malformed",
		},
		[]string{"result"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(CyclesTotal)
		prometheus.DefaultRegisterer.Register(StageDuration)
		prometheus.DefaultRegisterer.Register(FeedRecords)
		prometheus.DefaultRegisterer.Register(ChangesDetected)
		prometheus.DefaultRegisterer.Register(EventsDetected)
		prometheus.DefaultRegisterer.Register(AlertsCreated)
		prometheus.DefaultRegisterer.Register(AlertsDelivered)
		prometheus.DefaultRegisterer.Register(DispatchErrors)
		prometheus.DefaultRegisterer.Register(ProductsRepaired)
	})
}
