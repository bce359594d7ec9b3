package shield

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/gagstock/kit"
)

func apply(h http.Handler) http.Handler {
	stack := DefaultStack()
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestCORS_Preflight(t *testing.T) {
	// WHAT: OPTIONS is answered by the middleware with allow headers.
	// WHY: Browser dashboards on other origins poll the API.
	called := false
	h := apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stock", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if called {
		t.Fatal("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin: got %q", got)
	}
}

func TestStack_HeadersAndTrace(t *testing.T) {
	var traceID string
	var method string
	h := apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		method = r.Method
		if GetLogger(r.Context()) == nil {
			t.Error("logger missing")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/status", nil))

	if method != http.MethodGet {
		t.Fatalf("HEAD should be served as GET, got %s", method)
	}
	if traceID == "" || rec.Header().Get("X-Trace-ID") != traceID {
		t.Fatalf("trace id: ctx %q header %q", traceID, rec.Header().Get("X-Trace-ID"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("cors header missing on normal request")
	}
}

func TestSecurityHeaders_SkipsEmpty(t *testing.T) {
	// WHAT: Only non-empty fields become headers.
	cfg := DefaultHeaders()
	cfg.CSP = ""
	h := SecurityHeaders(cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, ok := rec.Header()["Content-Security-Policy"]; ok {
		t.Fatal("empty CSP should not be sent")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("X-Frame-Options missing")
	}
}
