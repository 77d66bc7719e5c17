package transport

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListenFallback(t *testing.T) {
	t.Run("binds the primary port when free", func(t *testing.T) {
		l, port, err := listenFallback("127.0.0.1", 0, nil)
		if err != nil {
			t.Fatalf("listenFallback() error: %v", err)
		}
		defer l.Close()
		if port == 0 {
			t.Error("bound port not reported")
		}
	})

	t.Run("falls back in order", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer taken.Close()
		takenPort := taken.Addr().(*net.TCPAddr).Port

		l, port, err := listenFallback("127.0.0.1", takenPort, []int{0})
		if err != nil {
			t.Fatalf("listenFallback() error: %v", err)
		}
		defer l.Close()
		if port == takenPort {
			t.Error("bound the occupied port")
		}
	})

	t.Run("reports a start error when every port fails", func(t *testing.T) {
		_, _, err := listenFallback("invalid.host.example.", 0, []int{0})
		if err == nil {
			t.Fatal("expected error")
		}
		var startErr *StartError
		if !errors.As(err, &startErr) {
			t.Fatalf("error = %T, want *StartError", err)
		}
		if len(startErr.Ports) != 2 {
			t.Errorf("Ports = %v, want both attempted ports", startErr.Ports)
		}
	})
}

func TestRequireBearer(t *testing.T) {
	handler := requireBearer("secret", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/message", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWrapHandler(t *testing.T) {
	t.Run("middleware apply outermost first", func(t *testing.T) {
		var order []string
		mw := func(name string) HTTPMiddleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		h := wrapHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
			"", []HTTPMiddleware{mw("outer"), mw("inner")})

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Errorf("order = %v, want [outer inner]", order)
		}
	})
}
