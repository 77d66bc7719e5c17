package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

func TestAuth(t *testing.T) {
	tokens := StaticTokens(map[string]*Identity{
		"secret": {ID: "alice", Name: "Alice"},
	})
	authenticator := BearerTokenAuthenticator(tokens)

	passthrough := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return protocol.NewResponse(req.ID, IdentityFromContext(ctx)), nil
	}

	t.Run("accepts a valid token", func(t *testing.T) {
		handler := Auth(authenticator)(passthrough)

		ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{
			"Authorization": "Bearer secret",
		})
		resp, err := handler(ctx, &protocol.Request{Method: "tools/list"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		identity, ok := resp.Result.(*Identity)
		if !ok || identity.ID != "alice" {
			t.Errorf("identity = %v, want alice", resp.Result)
		}
	})

	t.Run("rejects a bad token", func(t *testing.T) {
		handler := Auth(authenticator)(passthrough)

		ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{
			"Authorization": "Bearer wrong",
		})
		_, err := handler(ctx, &protocol.Request{Method: "tools/list"})
		var mcpErr *protocol.Error
		if !errors.As(err, &mcpErr) || mcpErr.Code != protocol.CodeUnauthorized {
			t.Fatalf("error = %v, want unauthorized", err)
		}
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		handler := Auth(authenticator)(passthrough)

		_, err := handler(context.Background(), &protocol.Request{Method: "tools/list"})
		var mcpErr *protocol.Error
		if !errors.As(err, &mcpErr) || mcpErr.Code != protocol.CodeUnauthorized {
			t.Fatalf("error = %v, want unauthorized", err)
		}
	})

	t.Run("skips handshake methods", func(t *testing.T) {
		handler := Auth(authenticator)(passthrough)

		for _, method := range []string{protocol.MethodInitialize, protocol.MethodPing} {
			if _, err := handler(context.Background(), &protocol.Request{Method: method}); err != nil {
				t.Errorf("%s: unexpected error: %v", method, err)
			}
		}
	})

	t.Run("skips configured methods", func(t *testing.T) {
		handler := Auth(authenticator, WithAuthSkipMethods("health/check"))(passthrough)

		if _, err := handler(context.Background(), &protocol.Request{Method: "health/check"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
