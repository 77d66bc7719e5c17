package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// StartError reports that a network binding could not start. It wraps the
// last bind failure and records every port that was attempted.
type StartError struct {
	Host  string
	Ports []int
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("transport: bind %s on ports %v: %v", e.Host, e.Ports, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// listenFallback binds a TCP listener on the first available port,
// trying the primary first and then each fallback in order. It returns
// the actually bound port, which differs from the requested one when
// binding port zero.
func listenFallback(host string, port int, fallback []int) (net.Listener, int, error) {
	ports := append([]int{port}, fallback...)
	var errs []error
	for _, p := range ports {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			bound := p
			if tcp, ok := l.Addr().(*net.TCPAddr); ok {
				bound = tcp.Port
			}
			return l, bound, nil
		}
		errs = append(errs, err)
	}
	return nil, 0, &StartError{Host: host, Ports: ports, Err: errors.Join(errs...)}
}

// wrapHandler applies the configured middleware chain around h, outermost
// first, with bearer-token enforcement innermost when a token is set.
func wrapHandler(h http.Handler, token string, mw []HTTPMiddleware) http.Handler {
	if token != "" {
		h = requireBearer(token, h)
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// readBody reads the request body, capped at max bytes (or
// DefaultMaxBodyBytes when max is unset). On failure it writes the error
// response itself and reports false.
func readBody(w http.ResponseWriter, r *http.Request, max int64) ([]byte, bool) {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, max)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "message body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "read body", http.StatusBadRequest)
		}
		return nil, false
	}
	return body, true
}

// requireBearer rejects requests lacking the expected bearer token.
func requireBearer(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || strings.TrimPrefix(auth, prefix) != token {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
