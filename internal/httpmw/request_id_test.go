package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_Generated(t *testing.T) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestID("")(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got == "" {
		t.Fatal("no request ID in context")
	}
	if len(got) != 32 {
		t.Fatalf("request ID length = %d, want 32 hex chars", len(got))
	}
	if rec.Header().Get("X-Request-Id") != got {
		t.Fatalf("response header %q, context %q", rec.Header().Get("X-Request-Id"), got)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-id")

	rec := httptest.NewRecorder()
	RequestID("X-Request-Id")(h).ServeHTTP(rec, req)

	if got != "upstream-id" {
		t.Fatalf("context request ID = %q, want upstream-id", got)
	}
	if rec.Header().Get("X-Request-Id") != "upstream-id" {
		t.Fatalf("echoed header = %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestRequestID_CustomHeader(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	RequestID("X-Correlation-Id")(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Header().Get("X-Correlation-Id") == "" {
		t.Fatal("custom header not set")
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if id := RequestIDFromContext(req.Context()); id != "" {
		t.Fatalf("expected empty, got %q", id)
	}
}
