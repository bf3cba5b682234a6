package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mwhitford/zipserve/internal/version"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestNew_RegistryPopulated(t *testing.T) {
	m := New()

	// MustRegister in New() would panic if any metric failed to register.
	// Verify the registry is functional by scraping it.
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	immediateMetrics := []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"profiling_active",
	}
	for _, name := range immediateMetrics {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}

	if !strings.Contains(body, "go_goroutines") {
		t.Error("go collector metrics missing")
	}
}

func TestSetArchive(t *testing.T) {
	m := New()
	m.SetArchive("abc123", "/srv/zipserve/app")

	f := gatherFamily(t, m.reg, "archive_info")
	if f == nil {
		t.Fatal("archive_info not gathered")
	}
	metric := f.GetMetric()
	if len(metric) != 1 {
		t.Fatalf("archive_info series = %d, want 1", len(metric))
	}
	labels := map[string]string{}
	for _, lp := range metric[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["sha256"] != "abc123" || labels["path"] != "/srv/zipserve/app" {
		t.Fatalf("labels = %v", labels)
	}
	if metric[0].GetGauge().GetValue() != 1 {
		t.Fatalf("gauge value = %v, want 1", metric[0].GetGauge().GetValue())
	}

	// a second call replaces the previous series
	m.SetArchive("def456", "/srv/zipserve/app")
	f = gatherFamily(t, m.reg, "archive_info")
	if got := len(f.GetMetric()); got != 1 {
		t.Fatalf("archive_info series after reset = %d, want 1", got)
	}
}

func TestSetAssetsIndexed(t *testing.T) {
	m := New()
	m.SetAssetsIndexed("/static", 42)

	f := gatherFamily(t, m.reg, "assets_indexed")
	if f == nil {
		t.Fatal("assets_indexed not gathered")
	}
	if got := f.GetMetric()[0].GetGauge().GetValue(); got != 42 {
		t.Fatalf("assets_indexed = %v, want 42", got)
	}
}

func TestObserveAssetServe(t *testing.T) {
	m := New()
	m.ObserveAssetServe(http.StatusOK, 1024)
	m.ObserveAssetServe(http.StatusPartialContent, 20)
	m.ObserveAssetServe(http.StatusNotModified, 0)
	m.ObserveAssetServe(http.StatusNotFound, 0)

	f := gatherFamily(t, m.reg, "asset_requests_total")
	if f == nil {
		t.Fatal("asset_requests_total not gathered")
	}
	got := map[string]float64{}
	for _, metric := range f.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "outcome" {
				got[lp.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	for _, outcome := range []string{"ok", "partial", "not_modified", "not_found"} {
		if got[outcome] != 1 {
			t.Errorf("outcome %q count = %v, want 1", outcome, got[outcome])
		}
	}

	// zero-byte responses must not pollute the size histogram
	h := gatherFamily(t, m.reg, "asset_bytes_served_total")
	if h == nil {
		t.Fatal("asset_bytes_served_total not gathered")
	}
	if n := h.GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Fatalf("histogram sample count = %d, want 2", n)
	}
}

func TestOutcomeForStatus(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "ok"},
		{http.StatusPartialContent, "partial"},
		{http.StatusNotModified, "not_modified"},
		{http.StatusNotFound, "not_found"},
		{http.StatusPreconditionFailed, "precondition_failed"},
		{http.StatusRequestedRangeNotSatisfiable, "range_unsatisfiable"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusInternalServerError, "error"},
		{http.StatusTeapot, "other"},
	}
	for _, tc := range cases {
		if got := outcomeForStatus(tc.status); got != tc.want {
			t.Errorf("outcomeForStatus(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	vi := version.Get()
	m.SetBuildInfoFromVersion(version.AppName, "server", &vi)

	f := gatherFamily(t, m.reg, "build_info")
	if f == nil {
		t.Fatal("build_info not gathered")
	}
	if f.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatal("build_info gauge != 1")
	}
}

func TestRateLimitCounters(t *testing.T) {
	m := New()
	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	m.IncRateLimitCapacity()

	f := gatherFamily(t, m.reg, "http_requests_rate_limited_total")
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("denied = %v, want 2", got)
	}
	f = gatherFamily(t, m.reg, "http_requests_rate_limited_capacity_total")
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("capacity = %v, want 1", got)
	}
}

func TestIncHttpPanic(t *testing.T) {
	m := New()
	m.IncHttpPanic()

	f := gatherFamily(t, m.reg, "http_panic_total")
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("http_panic_total = %v, want 1", got)
	}
}
