package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SSE carries messages over two HTTP paths: clients receive on a GET
// event stream and deliver on a POST message endpoint.
//
// Construction completes synchronously; the listener is bound by Start,
// which the server facade invokes on connect. (The config factory treats
// SSE availability as immediate and does not await Start itself.)
type SSE struct {
	cfg SSEConfig

	messages *broadcaster[Message]
	sig      *closeSignal

	mu       sync.Mutex
	started  bool
	closed   bool
	listener addr
	server   *http.Server

	clientsMu sync.RWMutex
	clients   map[string]chan []byte
}

type addr struct {
	port int
	host string
}

var (
	_ ServerTransport = (*SSE)(nil)
	_ Starter         = (*SSE)(nil)
)

// NewSSE creates an SSE transport from its config. No socket is bound
// until Start.
func NewSSE(cfg SSEConfig) *SSE {
	return &SSE{
		cfg:      cfg,
		messages: newBroadcaster[Message](),
		sig:      newCloseSignal(),
		clients:  map[string]chan []byte{},
	}
}

// Start binds the listener, trying the configured port and then each
// fallback port in order. Start is idempotent; only the first call binds.
func (s *SSE) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("transport: sse: start after close")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l, port, err := listenFallback(s.cfg.Host, s.cfg.Port, s.cfg.FallbackPorts)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.handler()}

	s.mu.Lock()
	s.server = srv
	s.listener = addr{port: port, host: s.cfg.Host}
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			s.sig.complete(err)
			_ = s.Close()
		}
	}()
	return nil
}

// Port returns the bound port, or zero before Start.
func (s *SSE) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.port
}

func (s *SSE) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Endpoint, s.handleStream)
	mux.HandleFunc(s.cfg.MessageEndpoint, s.handleMessage)
	return wrapHandler(mux, s.cfg.AuthToken, s.cfg.Middleware)
}

// handleStream serves the long-lived event stream for one client.
func (s *SSE) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	ch := make(chan []byte, 16)

	s.clientsMu.Lock()
	s.clients[clientID] = ch
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, clientID)
		s.clientsMu.Unlock()
	}()

	// Tell the client where to POST its messages.
	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", s.cfg.MessageEndpoint, clientID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.sig.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleMessage accepts one client-to-server message per POST.
func (s *SSE) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r, s.cfg.MaxBodyBytes)
	if !ok {
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	s.messages.Publish(Message(body))
	w.WriteHeader(http.StatusAccepted)
}

// Messages returns a subscription to client-delivered messages.
func (s *SSE) Messages() <-chan Message {
	return s.messages.Subscribe()
}

// Send broadcasts msg to every connected event-stream client. Sends
// after close are dropped; a client with a full buffer is skipped.
func (s *SSE) Send(msg Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Done returns the terminal close signal.
func (s *SSE) Done() <-chan struct{} {
	return s.sig.Done()
}

// Err reports the failure that closed the transport, if any.
func (s *SSE) Err() error {
	return s.sig.Err()
}

// Close shuts the HTTP server down, drops all event-stream clients, and
// completes the close signal. Idempotent.
func (s *SSE) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	s.messages.Close()
	// Completing the signal first releases the event-stream handlers,
	// which Shutdown waits on.
	s.sig.complete(nil)

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	return err
}
