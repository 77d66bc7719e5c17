// Package server provides the protocol server facade that attaches to a
// transport and drives its message stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/felixgeelhaar/mcp-wire/middleware"
	"github.com/felixgeelhaar/mcp-wire/protocol"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// Handler processes protocol requests the built-in facade does not
// handle itself.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Server composes a protocol handler with a transport. A server owns
// exactly one transport for its active lifetime, attached via Connect.
type Server struct {
	cfg    Config
	logger *slog.Logger
	handle middleware.HandlerFunc

	sem chan struct{}

	mu        sync.Mutex
	transport transport.ServerTransport
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger     *slog.Logger
	handler    Handler
	middleware []middleware.Middleware
}

// WithLogger sets the structured logger. The default logs to stderr at
// a level derived from Config.Debug.
func WithLogger(l *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithHandler sets the handler for methods the facade does not handle
// itself. Without one, unknown methods produce a method-not-found error.
func WithHandler(h Handler) Option {
	return func(o *serverOptions) { o.handler = h }
}

// WithMiddleware appends request middleware after the config-derived stack.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(o *serverOptions) { o.middleware = append(o.middleware, m...) }
}

// New creates a server from an immutable config value. The config's
// debug flag selects the logging verbosity injected here; no global
// logger state is touched. The request timeout and metrics flag wire the
// corresponding middleware.
func New(cfg Config, opts ...Option) *Server {
	options := &serverOptions{}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	if cfg.MaxConnections > 0 {
		s.sem = make(chan struct{}, cfg.MaxConnections)
	}

	stack := []middleware.Middleware{
		middleware.Recover(),
		middleware.RequestID(),
	}
	if cfg.RequestTimeout > 0 {
		stack = append(stack, middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.Metrics {
		stack = append(stack, middleware.OTel(middleware.WithOTelServiceName(cfg.Name)))
	}
	stack = append(stack, middleware.Logging(middleware.NewSlogLogger(logger)))
	stack = append(stack, options.middleware...)

	base := middleware.HandlerFunc(s.builtinHandler(options.handler))
	s.handle = middleware.Chain(stack...)(base)
	return s
}

// Config returns the server's configuration value.
func (s *Server) Config() Config {
	return s.cfg
}

// Transport returns the connected transport, or nil if the server is
// not connected. Useful for reading the bound port of HTTP bindings.
func (s *Server) Transport() transport.ServerTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// builtinHandler answers initialize and ping and delegates everything
// else to the user handler.
func (s *Server) builtinHandler(next Handler) middleware.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		switch req.Method {
		case protocol.MethodInitialize:
			return s.handleInitialize(req)
		case protocol.MethodInitialized:
			return nil, nil
		case protocol.MethodPing:
			return protocol.NewResponse(req.ID, map[string]any{}), nil
		default:
			if next != nil {
				return next.HandleRequest(ctx, req)
			}
			return nil, protocol.NewMethodNotFound(req.Method)
		}
	}
}

func (s *Server) handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	capabilities := make(map[string]any)
	if s.cfg.Capabilities.Tools {
		capabilities["tools"] = map[string]any{}
	}
	if s.cfg.Capabilities.Resources {
		capabilities["resources"] = map[string]any{}
	}
	if s.cfg.Capabilities.Prompts {
		capabilities["prompts"] = map[string]any{}
	}
	if s.cfg.Capabilities.Logging {
		capabilities["logging"] = map[string]any{}
	}

	result := map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"serverInfo": map[string]any{
			"name":    s.cfg.Name,
			"version": s.cfg.Version,
		},
		"capabilities": capabilities,
	}
	return protocol.NewResponse(req.ID, result), nil
}

// Connect attaches the server to a transport and begins consuming its
// message stream. Bindings that require a start step are started here;
// the connection fails if the start step fails. Connect does not block.
func (s *Server) Connect(ctx context.Context, t transport.ServerTransport) error {
	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return errors.New("server: already connected")
	}
	s.transport = t
	s.mu.Unlock()

	if starter, ok := t.(transport.Starter); ok {
		if err := starter.Start(ctx); err != nil {
			s.mu.Lock()
			s.transport = nil
			s.mu.Unlock()
			return fmt.Errorf("connect transport: %w", err)
		}
	}

	go s.serve(ctx, t, t.Messages())
	return nil
}

// Run attaches the server to a transport and blocks until the transport
// closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, t transport.ServerTransport) error {
	if err := s.Connect(ctx, t); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		_ = t.Close()
		<-t.Done()
		return ctx.Err()
	case <-t.Done():
		return t.Err()
	}
}

func (s *Server) serve(ctx context.Context, t transport.ServerTransport, in <-chan transport.Message) {
	for {
		select {
		case <-ctx.Done():
			_ = t.Close()
			return
		case <-t.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if s.sem != nil {
				s.sem <- struct{}{}
			}
			go func(msg transport.Message) {
				defer func() {
					if s.sem != nil {
						<-s.sem
					}
				}()
				s.dispatch(ctx, t, msg)
			}(msg)
		}
	}
}

// dispatch decodes one inbound message, runs it through the middleware
// chain, and sends the response back on the transport.
func (s *Server) dispatch(ctx context.Context, t transport.ServerTransport, msg transport.Message) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		s.respond(t, protocol.NewErrorResponse(nil, protocol.NewParseError(err.Error())))
		return
	}

	resp, err := s.handle(ctx, &req)

	if req.IsNotification() {
		return
	}
	if err != nil {
		var mcpErr *protocol.Error
		if errors.As(err, &mcpErr) {
			resp = protocol.NewErrorResponse(req.ID, mcpErr)
		} else {
			resp = protocol.NewErrorResponse(req.ID, protocol.NewInternalError(err.Error()))
		}
	}
	if resp != nil {
		s.respond(t, resp)
	}
}

func (s *Server) respond(t transport.ServerTransport, resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		return
	}
	if err := t.Send(data); err != nil {
		s.logger.Error("send response", "error", err)
	}
}

// Close closes the attached transport, if any. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}
