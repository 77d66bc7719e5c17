package middleware

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// Identity represents an authenticated identity.
type Identity struct {
	// ID is a unique identifier for the identity.
	ID string
	// Name is a human-readable name.
	Name string
	// Metadata carries additional identity information.
	Metadata map[string]any
}

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity from the
// context, or nil if none is present.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// ContextWithIdentity returns a new context with the identity attached.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// Authenticator validates credentials and returns an identity, or nil
// when the request carries no valid credentials.
type Authenticator func(ctx context.Context, req *protocol.Request) (*Identity, error)

// AuthOption configures the authentication middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	logger      Logger
	skipMethods map[string]bool
}

// WithAuthLogger sets the logger for auth events.
func WithAuthLogger(l Logger) AuthOption {
	return func(c *authConfig) {
		c.logger = l
	}
}

// WithAuthSkipMethods specifies methods that don't require
// authentication. "initialize" and "ping" are always skipped.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// Auth returns middleware that authenticates requests using the provided
// authenticator. Failed authentication rejects the request with an
// unauthorized error.
func Auth(authenticator Authenticator, opts ...AuthOption) Middleware {
	cfg := &authConfig{
		skipMethods: map[string]bool{
			protocol.MethodInitialize: true,
			protocol.MethodPing:       true,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			identity, err := authenticator(ctx, req)
			if err != nil || identity == nil {
				if cfg.logger != nil {
					fields := []Field{F("method", req.Method)}
					if err != nil {
						fields = append(fields, F("error", err.Error()))
					}
					cfg.logger.Warn("authentication failed", fields...)
				}
				return nil, protocol.NewUnauthorized("authentication required")
			}

			ctx = ContextWithIdentity(ctx, identity)
			return next(ctx, req)
		}
	}
}

// BearerTokenAuthenticator creates an authenticator that validates
// bearer tokens passed through request metadata. The validator returns
// the identity for a valid token, or nil for an invalid one.
func BearerTokenAuthenticator(validator func(token string) *Identity) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		auth := protocol.GetRequestMeta(ctx, "Authorization")
		if auth == "" {
			auth = protocol.GetRequestMeta(ctx, "authorization")
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return nil, nil
		}
		token := strings.TrimPrefix(auth, prefix)
		if token == "" {
			return nil, nil
		}
		return validator(token), nil
	}
}

// StaticTokens creates a token validator from a map of token to identity.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}
