package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows any origin by default", func(t *testing.T) {
		h := DefaultCORSConfig().Middleware()(ok)

		req := httptest.NewRequest(http.MethodGet, "/sse", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
	})

	t.Run("answers preflight without reaching the handler", func(t *testing.T) {
		reached := false
		h := DefaultCORSConfig().Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			reached = true
		}))

		req := httptest.NewRequest(http.MethodOptions, "/messages", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if reached {
			t.Error("preflight reached the handler")
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("missing Allow-Methods header")
		}
	})

	t.Run("unlisted origin gets no CORS headers", func(t *testing.T) {
		cfg := CORSConfig{AllowOrigins: []string{"https://allowed.example"}}
		h := cfg.Middleware()(ok)

		req := httptest.NewRequest(http.MethodGet, "/sse", nil)
		req.Header.Set("Origin", "https://other.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})
}
