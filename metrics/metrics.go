package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ClassificationsTotal counts classifier outcomes, labeled ok,
	// not_civic or fallback.
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixmycity",
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Total number of issue classification attempts, labeled by outcome.",
	}, []string{"outcome"})

	// ClassificationDuration is end-to-end classification time, including
	// the image fetch and the model round trip.
	ClassificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fixmycity",
		Subsystem: "classifier",
		Name:      "classification_duration_seconds",
		Help:      "End-to-end time to classify a report (image fetch + model call + parse).",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	})

	// IssuesCreatedTotal counts successfully persisted issues by department.
	IssuesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixmycity",
		Subsystem: "api",
		Name:      "issues_created_total",
		Help:      "Total number of issues created, labeled by assigned department.",
	}, []string{"department"})
)

// Register registers all metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ClassificationsTotal,
			ClassificationDuration,
			IssuesCreatedTotal,
		)
	})
}
