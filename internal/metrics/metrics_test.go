package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveOperation(t *testing.T) {
	r := New()
	r.ObserveOperation("objects", "iterate", 5*time.Millisecond, nil)
	r.ObserveOperation("objects", "get", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(r.operationErrors.WithLabelValues("objects", "get")); got != 1 {
		t.Errorf("errors(objects,get) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.operationErrors.WithLabelValues("objects", "iterate")); got != 0 {
		t.Errorf("errors(objects,iterate) = %v, want 0", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRequest(http.MethodGet, "GET /api/v1/objects", http.StatusOK, time.Millisecond)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `rackledger_http_requests_total{code="200",method="GET",route="GET /api/v1/objects"} 1`) {
		t.Errorf("request counter missing from exposition:\n%s", w.Body.String())
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRequest(http.MethodGet, "", http.StatusOK, time.Millisecond)
	r.ObserveOperation("types", "get", time.Millisecond, nil)
}
