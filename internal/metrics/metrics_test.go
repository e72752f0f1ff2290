package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsByRoute(t *testing.T) {
	m := NewHTTPMetrics("test")

	m.Observe("/api/v1/promotions", http.MethodGet, http.StatusOK, 3*time.Millisecond)
	m.Observe("/api/v1/promotions", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.Observe("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/promotions", "GET", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewHTTPMetrics("test")
	m.Observe("/healthz", http.MethodGet, http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "storefront_test_http_requests_total") {
		t.Fatalf("expected request counter in exposition, got:\n%s", body)
	}
}
