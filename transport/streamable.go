package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

const sessionIDHeader = "Mcp-Session-Id"

// StreamableHTTP carries messages over a single HTTP endpoint. Clients
// POST messages and receive the correlated response either as a plain
// JSON body (JSONResponse mode) or as a one-shot SSE stream; a standalone
// GET stream carries server-initiated messages.
//
// Unlike the other bindings, a StreamableHTTP transport is not available
// until Start has completed: the config factory awaits Start before
// reporting success.
type StreamableHTTP struct {
	cfg      StreamableHTTPConfig
	shutdown ShutdownConfig

	messages *broadcaster[Message]
	sig      *closeSignal
	drain    *drainTracker

	mu      sync.Mutex
	started bool
	closed  bool
	port    int
	server  *http.Server

	sessionsMu sync.RWMutex
	sessions   map[string]struct{}

	waitersMu sync.Mutex
	waiters   map[string]chan Message

	streamsMu sync.RWMutex
	streams   map[string]chan []byte
}

var (
	_ ServerTransport = (*StreamableHTTP)(nil)
	_ Starter         = (*StreamableHTTP)(nil)
)

// StreamableOption configures a StreamableHTTP transport beyond its config.
type StreamableOption func(*StreamableHTTP)

// WithStreamableShutdown sets the graceful shutdown behavior.
func WithStreamableShutdown(cfg ShutdownConfig) StreamableOption {
	return func(t *StreamableHTTP) {
		t.shutdown = cfg
	}
}

// NewStreamableHTTP creates a streamable HTTP transport from its config.
// The transport is not usable until Start succeeds.
func NewStreamableHTTP(cfg StreamableHTTPConfig, opts ...StreamableOption) *StreamableHTTP {
	t := &StreamableHTTP{
		cfg:      cfg,
		shutdown: DefaultShutdownConfig(),
		messages: newBroadcaster[Message](),
		sig:      newCloseSignal(),
		drain:    &drainTracker{},
		sessions: map[string]struct{}{},
		waiters:  map[string]chan Message{},
		streams:  map[string]chan []byte{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start binds the listener, trying the configured port and then each
// fallback port in order. It returns only once the transport is ready to
// carry messages. Start is idempotent; only the first call binds.
func (t *StreamableHTTP) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport: streamable http: start after close")
	}
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l, port, err := listenFallback(t.cfg.Host, t.cfg.Port, t.cfg.FallbackPorts)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: t.handler()}

	t.mu.Lock()
	t.server = srv
	t.port = port
	t.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			t.sig.complete(err)
			_ = t.Close()
		}
	}()
	return nil
}

// Port returns the bound port, or zero before Start.
func (t *StreamableHTTP) Port() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

func (t *StreamableHTTP) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.Endpoint, t.handleEndpoint)
	if t.cfg.MessageEndpoint != "" && t.cfg.MessageEndpoint != t.cfg.Endpoint {
		mux.HandleFunc(t.cfg.MessageEndpoint, t.handlePost)
	}
	return wrapHandler(mux, t.cfg.AuthToken, t.cfg.Middleware)
}

func (t *StreamableHTTP) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		t.handleStream(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePost accepts one client message and answers with the correlated
// response: a JSON body in JSONResponse mode, a one-shot SSE stream
// otherwise. Messages without an ID are acknowledged with 202.
func (t *StreamableHTTP) handlePost(w http.ResponseWriter, r *http.Request) {
	if !t.drain.enter() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer t.drain.exit()

	body, ok := readBody(w, r, t.cfg.MaxBodyBytes)
	if !ok {
		return
	}
	if len(body) == 0 {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	session := r.Header.Get(sessionIDHeader)
	if session == "" {
		session = uuid.NewString()
		t.sessionsMu.Lock()
		t.sessions[session] = struct{}{}
		t.sessionsMu.Unlock()
	} else if !t.validSession(session) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.Header().Set(sessionIDHeader, session)

	id := messageID(body)
	if id == "" {
		// Notification: nothing to correlate.
		t.messages.Publish(Message(body))
		w.WriteHeader(http.StatusAccepted)
		return
	}

	waiter := make(chan Message, 1)
	t.waitersMu.Lock()
	t.waiters[id] = waiter
	t.waitersMu.Unlock()
	defer func() {
		t.waitersMu.Lock()
		delete(t.waiters, id)
		t.waitersMu.Unlock()
	}()

	t.messages.Publish(Message(body))

	select {
	case <-r.Context().Done():
		return
	case <-t.sig.Done():
		http.Error(w, "transport closed", http.StatusServiceUnavailable)
		return
	case resp := <-waiter:
		if t.cfg.JSONResponse {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(resp)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", resp)
		flusher.Flush()
	}
}

// handleStream serves the standalone stream for server-initiated messages.
func (t *StreamableHTTP) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	session := r.Header.Get(sessionIDHeader)
	if session != "" && !t.validSession(session) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	streamID := uuid.NewString()
	ch := make(chan []byte, 16)

	t.streamsMu.Lock()
	t.streams[streamID] = ch
	t.streamsMu.Unlock()
	defer func() {
		t.streamsMu.Lock()
		delete(t.streams, streamID)
		t.streamsMu.Unlock()
	}()

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-t.sig.Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleDelete ends a session.
func (t *StreamableHTTP) handleDelete(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get(sessionIDHeader)
	if session == "" || !t.validSession(session) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	t.sessionsMu.Lock()
	delete(t.sessions, session)
	t.sessionsMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (t *StreamableHTTP) validSession(id string) bool {
	t.sessionsMu.RLock()
	defer t.sessionsMu.RUnlock()
	_, ok := t.sessions[id]
	return ok
}

// Messages returns a subscription to client-delivered messages.
func (t *StreamableHTTP) Messages() <-chan Message {
	return t.messages.Subscribe()
}

// Send delivers msg to the POST waiter it correlates with, falling back
// to every standalone stream. Sends after close are dropped.
func (t *StreamableHTTP) Send(msg Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil
	}

	if id := messageID(msg); id != "" {
		t.waitersMu.Lock()
		waiter, ok := t.waiters[id]
		t.waitersMu.Unlock()
		if ok {
			waiter <- msg
			return nil
		}
	}

	t.streamsMu.RLock()
	defer t.streamsMu.RUnlock()
	for _, ch := range t.streams {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Done returns the terminal close signal.
func (t *StreamableHTTP) Done() <-chan struct{} {
	return t.sig.Done()
}

// Err reports the failure that closed the transport, if any.
func (t *StreamableHTTP) Err() error {
	return t.sig.Err()
}

// Close drains in-flight POSTs, shuts the HTTP server down, and completes
// the close signal. Idempotent.
func (t *StreamableHTTP) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	t.drain.draining.Store(true)
	t.messages.Close()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), t.shutdown.Timeout)
		defer cancel()
		// Drain before completing the signal so an in-flight POST whose
		// response is already buffered still returns it instead of a 503.
		// The signal must complete before Shutdown, which waits for the
		// standalone stream handlers to exit.
		_ = t.drain.drain(ctx, t.shutdown)
		t.sig.complete(nil)
		err = srv.Shutdown(ctx)
	} else {
		t.sig.complete(nil)
	}
	return err
}

// messageID extracts the request ID from a JSON-RPC message, or "" when
// the message is a notification or not parseable.
func messageID(msg []byte) string {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return ""
	}
	if len(envelope.ID) == 0 || string(envelope.ID) == "null" {
		return ""
	}
	return string(envelope.ID)
}
