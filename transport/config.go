package transport

import "net/http"

// HTTPMiddleware wraps an HTTP binding's handler. Middleware are applied
// in order, outermost first.
type HTTPMiddleware func(http.Handler) http.Handler

// DefaultMaxBodyBytes is the message body cap applied by the HTTP
// bindings when the config leaves MaxBodyBytes unset.
const DefaultMaxBodyBytes = 4 << 20

// Config selects a transport binding. The set of variants is closed:
// exactly StdioConfig, SSEConfig, and StreamableHTTPConfig implement it,
// and New dispatches exhaustively over the three. Config values are
// constructed once and never mutated.
type Config interface {
	transportConfig()
}

// StdioConfig selects the stdio binding. It carries no parameters.
type StdioConfig struct{}

func (StdioConfig) transportConfig() {}

// SSEConfig selects the SSE binding: an event-stream endpoint for
// server-to-client messages and a POST endpoint for client-to-server
// messages.
type SSEConfig struct {
	// Endpoint is the SSE event-stream path.
	Endpoint string
	// MessageEndpoint is the path clients POST messages to.
	MessageEndpoint string
	Host            string
	Port            int
	// FallbackPorts are tried in order when Port cannot be bound.
	FallbackPorts []int
	// AuthToken, when set, requires a matching bearer token on every request.
	AuthToken string
	// MaxBodyBytes caps the size of a POSTed message body.
	MaxBodyBytes int64
	Middleware   []HTTPMiddleware
}

func (SSEConfig) transportConfig() {}

// SSEOption overrides an SSEConfig default.
type SSEOption func(*SSEConfig)

// WithSSEEndpoint sets the event-stream path.
func WithSSEEndpoint(path string) SSEOption {
	return func(c *SSEConfig) { c.Endpoint = path }
}

// WithSSEMessageEndpoint sets the message POST path.
func WithSSEMessageEndpoint(path string) SSEOption {
	return func(c *SSEConfig) { c.MessageEndpoint = path }
}

// WithSSEHost sets the listen host.
func WithSSEHost(host string) SSEOption {
	return func(c *SSEConfig) { c.Host = host }
}

// WithSSEPort sets the listen port.
func WithSSEPort(port int) SSEOption {
	return func(c *SSEConfig) { c.Port = port }
}

// WithSSEFallbackPorts sets the ports tried when the primary cannot be bound.
func WithSSEFallbackPorts(ports ...int) SSEOption {
	return func(c *SSEConfig) { c.FallbackPorts = ports }
}

// WithSSEAuthToken requires a bearer token on every request.
func WithSSEAuthToken(token string) SSEOption {
	return func(c *SSEConfig) { c.AuthToken = token }
}

// WithSSEMaxBodyBytes caps the size of a POSTed message body.
func WithSSEMaxBodyBytes(n int64) SSEOption {
	return func(c *SSEConfig) { c.MaxBodyBytes = n }
}

// WithSSEMiddleware appends HTTP middleware around the binding's handler.
func WithSSEMiddleware(mw ...HTTPMiddleware) SSEOption {
	return func(c *SSEConfig) { c.Middleware = append(c.Middleware, mw...) }
}

// NewSSEConfig returns an SSEConfig with the documented defaults:
// endpoint /sse, message endpoint /message, localhost:8080, no fallback
// ports, no auth token.
func NewSSEConfig(opts ...SSEOption) SSEConfig {
	c := SSEConfig{
		Endpoint:        "/sse",
		MessageEndpoint: "/message",
		Host:            "localhost",
		Port:            8080,
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// SSEConfigForPort is a convenience constructor taking a bare port. When
// no fallback ports are supplied it uses the next three sequential ports.
func SSEConfigForPort(port int, opts ...SSEOption) SSEConfig {
	c := NewSSEConfig(opts...)
	c.Port = port
	if len(c.FallbackPorts) == 0 {
		c.FallbackPorts = nextFallbackPorts(port)
	}
	return c
}

// StreamableHTTPConfig selects the streamable HTTP binding: a single
// endpoint accepting POSTed messages, answering with either a direct JSON
// response or an SSE stream depending on JSONResponse.
type StreamableHTTPConfig struct {
	Host string
	Port int
	// Endpoint is the main streamable path.
	Endpoint string
	// MessageEndpoint is the legacy message POST path.
	MessageEndpoint string
	// FallbackPorts are tried in order when Port cannot be bound.
	FallbackPorts []int
	// AuthToken, when set, requires a matching bearer token on every request.
	AuthToken string
	// JSONResponse answers POSTs with a single JSON body instead of an
	// SSE stream.
	JSONResponse bool
	// MaxBodyBytes caps the size of a POSTed message body.
	MaxBodyBytes int64
	Middleware   []HTTPMiddleware
}

func (StreamableHTTPConfig) transportConfig() {}

// StreamableHTTPOption overrides a StreamableHTTPConfig default.
type StreamableHTTPOption func(*StreamableHTTPConfig)

// WithStreamableHost sets the listen host.
func WithStreamableHost(host string) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.Host = host }
}

// WithStreamablePort sets the listen port.
func WithStreamablePort(port int) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.Port = port }
}

// WithStreamableEndpoint sets the main streamable path.
func WithStreamableEndpoint(path string) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.Endpoint = path }
}

// WithStreamableMessageEndpoint sets the legacy message POST path.
func WithStreamableMessageEndpoint(path string) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.MessageEndpoint = path }
}

// WithStreamableFallbackPorts sets the ports tried when the primary
// cannot be bound.
func WithStreamableFallbackPorts(ports ...int) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.FallbackPorts = ports }
}

// WithStreamableAuthToken requires a bearer token on every request.
func WithStreamableAuthToken(token string) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.AuthToken = token }
}

// WithStreamableJSONResponse switches POST responses from SSE streams to
// single JSON bodies.
func WithStreamableJSONResponse(enabled bool) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.JSONResponse = enabled }
}

// WithStreamableMaxBodyBytes caps the size of a POSTed message body.
func WithStreamableMaxBodyBytes(n int64) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.MaxBodyBytes = n }
}

// WithStreamableMiddleware appends HTTP middleware around the binding's handler.
func WithStreamableMiddleware(mw ...HTTPMiddleware) StreamableHTTPOption {
	return func(c *StreamableHTTPConfig) { c.Middleware = append(c.Middleware, mw...) }
}

// NewStreamableHTTPConfig returns a StreamableHTTPConfig with the
// documented defaults: localhost:8080, endpoint /messages, message
// endpoint /message, no fallback ports, JSON responses disabled.
func NewStreamableHTTPConfig(opts ...StreamableHTTPOption) StreamableHTTPConfig {
	c := StreamableHTTPConfig{
		Host:            "localhost",
		Port:            8080,
		Endpoint:        "/messages",
		MessageEndpoint: "/message",
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// StreamableHTTPConfigForPort is a convenience constructor taking a bare
// port. When no fallback ports are supplied it uses the next three
// sequential ports.
func StreamableHTTPConfigForPort(port int, opts ...StreamableHTTPOption) StreamableHTTPConfig {
	c := NewStreamableHTTPConfig(opts...)
	c.Port = port
	if len(c.FallbackPorts) == 0 {
		c.FallbackPorts = nextFallbackPorts(port)
	}
	return c
}

// nextFallbackPorts returns the three ports following port.
func nextFallbackPorts(port int) []int {
	return []int{port + 1, port + 2, port + 3}
}
