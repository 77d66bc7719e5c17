// Package mcpwire provides the transport layer of an MCP server SDK: the
// channel abstraction that carries opaque messages between a protocol
// server and its peer, independent of message semantics.
//
// A server is configured with an immutable config value and attached to a
// transport selected through a closed config variant set:
//
//	cfg := mcpwire.NewConfig("my-server", "1.0.0")
//	srv, err := mcpwire.CreateAndStart(ctx, cfg,
//	    mcpwire.StreamableHTTPConfigForPort(8080))
//
// For in-process embedding or testing, the in-memory transport pairs a
// server with a co-located client without a network stack:
//
//	t := mcpwire.NewInMemoryTransport()
//	client := t.Client()
package mcpwire

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-wire/server"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// Re-export core types for convenience.

// Config is an immutable server configuration value.
type Config = server.Config

// ConfigOption overrides a Config field.
type ConfigOption = server.ConfigOption

// Capabilities declares what features the server supports.
type Capabilities = server.Capabilities

// Server is the protocol server facade.
type Server = server.Server

// ServerOption configures a Server.
type ServerOption = server.Option

// ServerTransport is the capability contract every transport binding
// implements.
type ServerTransport = transport.ServerTransport

// TransportConfig selects a transport binding from the closed variant
// set: StdioConfig, SSEConfig, or StreamableHTTPConfig.
type TransportConfig = transport.Config

// Transport config variants.
type (
	StdioConfig          = transport.StdioConfig
	SSEConfig            = transport.SSEConfig
	StreamableHTTPConfig = transport.StreamableHTTPConfig
)

// Config constructors, re-exported.
var (
	NewConfig               = server.NewConfig
	NewSSEConfig            = transport.NewSSEConfig
	SSEConfigForPort        = transport.SSEConfigForPort
	NewStreamableHTTPConfig = transport.NewStreamableHTTPConfig
	// StreamableHTTPConfigForPort takes a bare port and defaults the
	// fallback ports to the next three sequential ports.
	StreamableHTTPConfigForPort = transport.StreamableHTTPConfigForPort
)

// Server config options, re-exported.
var (
	WithCapabilities   = server.WithCapabilities
	WithDebug          = server.WithDebug
	WithMaxConnections = server.WithMaxConnections
	WithRequestTimeout = server.WithRequestTimeout
	WithMetrics        = server.WithMetrics
)

// NewInMemoryTransport creates the in-process duplex transport. Its
// Client method returns the paired client-side view.
func NewInMemoryTransport() *transport.InMemory {
	return transport.NewInMemory()
}

// NewServer builds a protocol server from a config value. The config's
// debug flag selects the injected logging verbosity; request timeout and
// metrics wire the corresponding middleware.
func NewServer(cfg Config, opts ...ServerOption) *Server {
	return server.New(cfg, opts...)
}

// NewTransport resolves a transport config variant into a running
// transport. Stdio and SSE variants are available immediately; the
// StreamableHTTP variant is started (listener bound, fallback ports
// retried) before NewTransport reports success.
func NewTransport(ctx context.Context, cfg TransportConfig) (ServerTransport, error) {
	t, err := transport.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	return t, nil
}

// CreateAndStart builds a server, resolves a transport, and connects the
// two. Any failure, whether in construction, transport startup, or
// connection, is returned as the error; no partial state is returned.
func CreateAndStart(ctx context.Context, cfg Config, tcfg TransportConfig, opts ...ServerOption) (*Server, error) {
	srv := server.New(cfg, opts...)

	t, err := NewTransport(ctx, tcfg)
	if err != nil {
		return nil, err
	}

	if err := srv.Connect(ctx, t); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("connect server: %w", err)
	}
	return srv, nil
}
