package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entrasecure_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entrasecure_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	graphRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entrasecure_graph_requests_total",
		Help: "Total number of Microsoft Graph requests",
	}, []string{"method", "status"})

	graphRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entrasecure_graph_request_duration_seconds",
		Help:    "Duration of Microsoft Graph requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	overviewBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "entrasecure_overview_build_duration_seconds",
		Help:    "Duration of security overview aggregation passes",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"result"})

	ownershipProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entrasecure_ownership_probe_failures_total",
		Help: "Ownership probes degraded to unknown status",
	}, []string{"entity"})

	overviewSnapshotAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "entrasecure_overview_snapshot_age_seconds",
		Help: "Age of the most recent cached overview snapshot",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveGraphRequest records one request to Microsoft Graph
func ObserveGraphRequest(method, status string, duration time.Duration) {
	graphRequestsTotal.WithLabelValues(method, status).Inc()
	graphRequestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
}

// ObserveOverviewBuild records the duration of one aggregation pass
func ObserveOverviewBuild(result string, duration time.Duration) {
	overviewBuildDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveProbeFailure counts an ownership probe that degraded to unknown
func ObserveProbeFailure(entity string) {
	ownershipProbeFailures.WithLabelValues(entity).Inc()
}

// SetSnapshotAge publishes the age of the cached overview snapshot
func SetSnapshotAge(age time.Duration) {
	if age < 0 {
		age = 0
	}
	overviewSnapshotAge.Set(age.Seconds())
}
