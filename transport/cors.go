package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin behavior for the HTTP bindings.
// Use Middleware to slot it into a binding's middleware chain.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows all.
	AllowOrigins []string

	// AllowMethods lists allowed HTTP methods.
	// Default: GET, POST, DELETE, OPTIONS.
	AllowMethods []string

	// AllowHeaders lists allowed request headers.
	// Default: Content-Type, Authorization, Mcp-Session-Id.
	AllowHeaders []string

	// ExposeHeaders lists headers the browser may read.
	ExposeHeaders []string

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default: 86400.
	MaxAge int
}

// DefaultCORSConfig returns a permissive configuration suitable for
// development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", sessionIDHeader},
		ExposeHeaders: []string{sessionIDHeader},
		MaxAge:        86400,
	}
}

// Middleware returns an HTTPMiddleware enforcing the CORS policy.
func (c CORSConfig) Middleware() HTTPMiddleware {
	cfg := c
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"Content-Type", "Authorization", sessionIDHeader}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 86400
	}

	allowAll := len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*"
	allowed := make(map[string]bool, len(cfg.AllowOrigins))
	for _, origin := range cfg.AllowOrigins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			var allowOrigin string
			switch {
			case allowAll:
				allowOrigin = "*"
			case origin != "" && allowed[origin]:
				allowOrigin = origin
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
					w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					w.WriteHeader(http.StatusNoContent)
					return
				}

				if len(cfg.ExposeHeaders) > 0 {
					w.Header().Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
