package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type routes map[string]http.HandlerFunc

func (r routes) RegisterRoutes(mux *http.ServeMux) {
	for pattern, h := range r {
		mux.HandleFunc(pattern, h)
	}
}

func newTestServer(t *testing.T, opts Options, extra routes) (*Server, *metrics.Recorder) {
	t.Helper()
	rec := metrics.New()
	return New(opts, zap.NewNop(), rec, extra), rec
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.10:5555"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{}, nil)
	w := serve(s, "GET", "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "rackledger" {
		t.Errorf("service = %v, want rackledger", body["service"])
	}
	if w.Header().Get("X-RackLedger-Version") == "" {
		t.Error("expected version header")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	s, _ := newTestServer(t, Options{}, routes{
		"GET /echo": func(w http.ResponseWriter, r *http.Request) { seen = RequestIDFromContext(r.Context()) },
	})

	w := serve(s, "GET", "/echo")
	got := w.Header().Get(RequestIDHeader)
	if got == "" || got != seen {
		t.Errorf("request id header %q, context %q", got, seen)
	}

	req := httptest.NewRequest("GET", "/echo", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("incoming request id not kept: %q", got)
	}
}

func TestMetricsByRoutePattern(t *testing.T) {
	s, rec := newTestServer(t, Options{}, routes{
		"GET /api/v1/things/{id}": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) },
	})
	serve(s, "GET", "/api/v1/things/1")
	serve(s, "GET", "/api/v1/things/2")

	n, err := testutil.GatherAndCount(rec.Registry(), "rackledger_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1 (both requests share a pattern)", n)
	}

	w := serve(s, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2}, nil)

	for i := range 2 {
		if w := serve(s, "GET", "/api/v1/health"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := serve(s, "GET", "/api/v1/health")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var p Problem
	json.NewDecoder(w.Body).Decode(&p)
	if p.Type != ProblemTypeRateLimited {
		t.Errorf("type = %q, want %q", p.Type, ProblemTypeRateLimited)
	}

	other := httptest.NewRequest("GET", "/api/v1/health", nil)
	other.RemoteAddr = "198.51.100.7:1234"
	rw := httptest.NewRecorder()
	s.Handler().ServeHTTP(rw, other)
	if rw.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rw.Code)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("192.0.2.1")
	l.Allow("192.0.2.2")
	if got := l.Clients(); got != 2 {
		t.Fatalf("clients = %d, want 2", got)
	}

	now = now.Add(limiterIdleTTL / 2)
	l.Allow("192.0.2.2")
	now = now.Add(limiterIdleTTL/2 + time.Second)
	if !l.Allow("192.0.2.3") {
		t.Error("new client denied")
	}
	if got := l.Clients(); got != 2 {
		t.Errorf("clients after sweep = %d, want 2 (idle client dropped)", got)
	}
	l.mu.Lock()
	_, kept := l.limiters["192.0.2.2"]
	l.mu.Unlock()
	if !kept {
		t.Error("recently seen client was evicted")
	}
}

func TestLoggingRecoversPanic(t *testing.T) {
	s, _ := newTestServer(t, Options{}, routes{
		"GET /boom": func(http.ResponseWriter, *http.Request) { panic("boom") },
	})
	w := serve(s, "GET", "/boom")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"a", "b", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
