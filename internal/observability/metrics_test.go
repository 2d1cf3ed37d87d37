package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("activitysink")

	m.EventsSubmitted.Inc()
	m.EventsSubmitted.Inc()
	m.RecordFailures.WithLabelValues(ReasonDecode).Inc()

	if got := testutil.ToFloat64(m.EventsSubmitted); got != 2 {
		t.Errorf("events submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordFailures.WithLabelValues(ReasonDecode)); got != 1 {
		t.Errorf("decode failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RecordFailures.WithLabelValues(ReasonStore)); got != 0 {
		t.Errorf("store failures = %v, want 0", got)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("activitysink")
	b := NewMetrics("activitysink")

	a.RecordsStored.Inc()
	if got := testutil.ToFloat64(b.RecordsStored); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("activitysink")
	m.BatchesProcessed.Inc()
	m.StoreLatency.Observe(0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"activitysink_batches_processed_total 1", "activitysink_store_latency_seconds_count 1"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %q in metrics output", name)
		}
	}
}
