package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket carries messages over WebSocket connections. It implements
// the same ServerTransport contract as the config-selected bindings but
// is constructed directly; it is not part of the Config variant set.
type WebSocket struct {
	host     string
	port     int
	fallback []int
	path     string
	upgrader websocket.Upgrader

	writeTimeout time.Duration

	messages *broadcaster[Message]
	sig      *closeSignal

	mu       sync.Mutex
	started  bool
	closed   bool
	boundTo  int
	server   *http.Server

	connsMu sync.Mutex
	conns   map[*wsConn]struct{}
}

// wsConn serializes writes to a single connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var (
	_ ServerTransport = (*WebSocket)(nil)
	_ Starter         = (*WebSocket)(nil)
)

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketPath sets the upgrade path. Default "/ws".
func WithWebSocketPath(path string) WebSocketOption {
	return func(ws *WebSocket) {
		ws.path = path
	}
}

// WithWebSocketFallbackPorts sets the ports tried when the primary
// cannot be bound.
func WithWebSocketFallbackPorts(ports ...int) WebSocketOption {
	return func(ws *WebSocket) {
		ws.fallback = ports
	}
}

// WithWebSocketWriteTimeout sets the per-message write deadline.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketCheckOrigin sets the origin check for upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) {
		ws.upgrader.CheckOrigin = fn
	}
}

// NewWebSocket creates a WebSocket transport listening on host:port.
// No socket is bound until Start.
func NewWebSocket(host string, port int, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		host:         host,
		port:         port,
		path:         "/ws",
		writeTimeout: 10 * time.Second,
		messages:     newBroadcaster[Message](),
		sig:          newCloseSignal(),
		conns:        map[*wsConn]struct{}{},
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Start binds the listener. Idempotent.
func (ws *WebSocket) Start(ctx context.Context) error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return fmt.Errorf("transport: websocket: start after close")
	}
	if ws.started {
		ws.mu.Unlock()
		return nil
	}
	ws.started = true
	ws.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l, port, err := listenFallback(ws.host, ws.port, ws.fallback)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)
	srv := &http.Server{Handler: mux}

	ws.mu.Lock()
	ws.server = srv
	ws.boundTo = port
	ws.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			ws.sig.complete(err)
			_ = ws.Close()
		}
	}()
	return nil
}

// Port returns the bound port, or zero before Start.
func (ws *WebSocket) Port() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.boundTo
}

func (ws *WebSocket) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &wsConn{conn: conn}
	ws.connsMu.Lock()
	ws.conns[c] = struct{}{}
	ws.connsMu.Unlock()

	defer func() {
		ws.connsMu.Lock()
		delete(ws.conns, c)
		ws.connsMu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ws.messages.Publish(Message(data))
	}
}

// Messages returns a subscription to inbound messages.
func (ws *WebSocket) Messages() <-chan Message {
	return ws.messages.Subscribe()
}

// Send writes msg to every connected client. Sends after close are dropped.
func (ws *WebSocket) Send(msg Message) error {
	ws.mu.Lock()
	closed := ws.closed
	ws.mu.Unlock()
	if closed {
		return nil
	}

	ws.connsMu.Lock()
	defer ws.connsMu.Unlock()
	for c := range ws.conns {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(ws.writeTimeout))
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
	}
	return nil
}

// Done returns the terminal close signal.
func (ws *WebSocket) Done() <-chan struct{} {
	return ws.sig.Done()
}

// Err reports the failure that closed the transport, if any.
func (ws *WebSocket) Err() error {
	return ws.sig.Err()
}

// Close drops all connections, shuts the server down, and completes the
// close signal. Idempotent.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	srv := ws.server
	ws.mu.Unlock()

	ws.messages.Close()

	ws.connsMu.Lock()
	for c := range ws.conns {
		_ = c.conn.Close()
	}
	ws.conns = map[*wsConn]struct{}{}
	ws.connsMu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	ws.sig.complete(nil)
	return err
}
