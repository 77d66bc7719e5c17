package server

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Capabilities declares what features the server supports.
type Capabilities struct {
	Tools     bool
	Resources bool
	Prompts   bool
	Logging   bool
}

// Config is an immutable server configuration value. Two configs with
// equal fields are interchangeable; there are no identity semantics.
// Derive variants with With rather than mutating.
type Config struct {
	Name           string
	Version        string
	Capabilities   Capabilities
	Debug          bool
	MaxConnections int
	RequestTimeout time.Duration
	Metrics        bool
}

// NewConfig returns a Config with the default operational settings.
func NewConfig(name, version string, opts ...ConfigOption) Config {
	c := Config{
		Name:           name,
		Version:        version,
		MaxConnections: 0, // unlimited
		RequestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ConfigOption overrides a Config field.
type ConfigOption func(*Config)

// WithCapabilities sets the advertised capability set.
func WithCapabilities(caps Capabilities) ConfigOption {
	return func(c *Config) { c.Capabilities = caps }
}

// WithDebug enables debug-level logging.
func WithDebug(debug bool) ConfigOption {
	return func(c *Config) { c.Debug = debug }
}

// WithMaxConnections caps concurrently handled requests. Zero means
// unlimited.
func WithMaxConnections(n int) ConfigOption {
	return func(c *Config) { c.MaxConnections = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.RequestTimeout = d }
}

// WithMetrics enables OpenTelemetry instrumentation.
func WithMetrics(enabled bool) ConfigOption {
	return func(c *Config) { c.Metrics = enabled }
}

// With returns a new Config with the given fields overridden. The
// receiver is never modified.
func (c Config) With(opts ...ConfigOption) Config {
	next := c
	for _, opt := range opts {
		opt(&next)
	}
	return next
}

// Equal reports structural equality over all fields.
func (c Config) Equal(o Config) bool {
	return c == o
}

// Hash returns a structural hash consistent with Equal.
func (c Config) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%+v\x00%t\x00%d\x00%d\x00%t",
		c.Name, c.Version, c.Capabilities, c.Debug, c.MaxConnections, c.RequestTimeout, c.Metrics)
	return h.Sum64()
}
