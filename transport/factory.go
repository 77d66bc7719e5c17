package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilConfig is returned by New when no config is supplied.
var ErrNilConfig = errors.New("transport: nil config")

// New resolves a Config variant into a running ServerTransport.
//
// Stdio and SSE transports are constructed synchronously and returned
// immediately. A StreamableHTTP transport additionally awaits its Start
// step, which binds the listener and retries across fallback ports; New
// does not report success until that step completes.
//
// The type switch is the single dispatch point over the sealed Config
// set; the default branch is unreachable for external callers because
// only the three variants implement Config.
func New(ctx context.Context, cfg Config) (ServerTransport, error) {
	switch c := cfg.(type) {
	case StdioConfig:
		return NewStdio(), nil
	case SSEConfig:
		return NewSSE(c), nil
	case StreamableHTTPConfig:
		t := NewStreamableHTTP(c)
		if err := t.Start(ctx); err != nil {
			return nil, fmt.Errorf("start streamable http transport: %w", err)
		}
		return t, nil
	case nil:
		return nil, ErrNilConfig
	default:
		return nil, fmt.Errorf("transport: unhandled config variant %T", cfg)
	}
}
