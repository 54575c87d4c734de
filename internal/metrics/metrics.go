package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blobcache",
			Name:      "cache_lookups_total",
			Help:      "Count of cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	JobEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blobcache",
			Name:      "job_events_total",
			Help:      "Count of download job events processed by coordinators.",
		},
		[]string{"type"},
	)

	TransferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blobcache",
			Name:      "transfer_duration_seconds",
			Help:      "Duration of HTTP transfers by outcome.",
		},
		[]string{"outcome"},
	)

	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blobcache",
			Name:      "active_jobs",
			Help:      "Number of download jobs currently in flight.",
		},
	)
)

// Register registers the blobcache metrics into the default registry.
func Register() {
	prometheus.MustRegister(Lookups, JobEvents, TransferDuration, ActiveJobs)
}
