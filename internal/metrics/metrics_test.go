package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Lookups, JobEvents, TransferDuration, ActiveJobs)

	Lookups.WithLabelValues("hit").Inc()
	JobEvents.WithLabelValues("complete").Add(2)
	ActiveJobs.Set(1)
	TransferDuration.WithLabelValues("succeeded").Observe(0.05)

	expectedLookups := `# HELP blobcache_cache_lookups_total Count of cache lookups by result (hit or miss).
# TYPE blobcache_cache_lookups_total counter
blobcache_cache_lookups_total{result="hit"} 1
`
	if err := testutil.CollectAndCompare(Lookups, strings.NewReader(expectedLookups)); err != nil {
		t.Fatalf("unexpected lookups metric: %v", err)
	}

	expectedEvents := `# HELP blobcache_job_events_total Count of download job events processed by coordinators.
# TYPE blobcache_job_events_total counter
blobcache_job_events_total{type="complete"} 2
`
	if err := testutil.CollectAndCompare(JobEvents, strings.NewReader(expectedEvents)); err != nil {
		t.Fatalf("unexpected job events metric: %v", err)
	}

	expectedGauge := `# HELP blobcache_active_jobs Number of download jobs currently in flight.
# TYPE blobcache_active_jobs gauge
blobcache_active_jobs 1
`
	if err := testutil.CollectAndCompare(ActiveJobs, strings.NewReader(expectedGauge)); err != nil {
		t.Fatalf("unexpected active jobs gauge: %v", err)
	}

	if got := testutil.CollectAndCount(TransferDuration); got != 1 {
		t.Fatalf("expected one transfer duration series, got %d", got)
	}
}
