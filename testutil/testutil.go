// Package testutil provides helpers for testing servers built on the
// transport layer. A TestClient drives a server over the in-memory
// transport with synchronous request/response calls:
//
//	srv := mcpwire.NewServer(mcpwire.NewConfig("test", "1.0.0"))
//	tc := testutil.NewTestClient(t, srv)
//	defer tc.Close()
//
//	resp := tc.Call("ping", nil)
//	if resp.Error != nil {
//	    t.Fatalf("ping failed: %v", resp.Error)
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-wire/protocol"
	"github.com/felixgeelhaar/mcp-wire/server"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// DefaultTimeout bounds how long a TestClient waits for a reply.
const DefaultTimeout = 5 * time.Second

// TestClient drives a server through the in-memory transport and
// correlates replies to calls by request ID.
type TestClient struct {
	t   testing.TB
	srv *server.Server
	tr  *transport.InMemory

	reqID atomic.Int64

	mu      sync.Mutex
	pending map[string]chan *protocol.Response

	timeout time.Duration
	done    chan struct{}
}

// Option configures a TestClient.
type Option func(*TestClient)

// WithTimeout overrides the per-call reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(tc *TestClient) {
		tc.timeout = d
	}
}

// NewTestClient connects the server to a fresh in-memory transport and
// returns a client for it. The client is torn down when the test ends.
func NewTestClient(t testing.TB, srv *server.Server, opts ...Option) *TestClient {
	t.Helper()

	tc := &TestClient{
		t:       t,
		srv:     srv,
		tr:      transport.NewInMemory(),
		pending: make(map[string]chan *protocol.Response),
		timeout: DefaultTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(tc)
	}

	out := tc.tr.Client().Messages()
	if err := srv.Connect(context.Background(), tc.tr); err != nil {
		t.Fatalf("testutil: connect server: %v", err)
	}
	go tc.readLoop(out)

	t.Cleanup(tc.Close)
	return tc
}

func (tc *TestClient) readLoop(out <-chan transport.Message) {
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return
			}
			var resp protocol.Response
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			tc.mu.Lock()
			ch, ok := tc.pending[string(resp.ID)]
			if ok {
				delete(tc.pending, string(resp.ID))
			}
			tc.mu.Unlock()
			if ok {
				ch <- &resp
			}
		case <-tc.done:
			return
		}
	}
}

// Call sends a request and waits for the matching reply. Fails the test
// on marshal errors, delivery errors, or timeout.
func (tc *TestClient) Call(method string, params any) *protocol.Response {
	tc.t.Helper()

	id := tc.reqID.Add(1)
	idRaw := json.RawMessage(fmt.Sprintf("%d", id))

	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      idRaw,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			tc.t.Fatalf("testutil: marshal params: %v", err)
		}
		req.Params = data
	}

	ch := make(chan *protocol.Response, 1)
	tc.mu.Lock()
	tc.pending[string(idRaw)] = ch
	tc.mu.Unlock()

	tc.deliver(req)

	select {
	case resp := <-ch:
		return resp
	case <-time.After(tc.timeout):
		tc.mu.Lock()
		delete(tc.pending, string(idRaw))
		tc.mu.Unlock()
		tc.t.Fatalf("testutil: no reply to %s within %v", method, tc.timeout)
		return nil
	}
}

// Notify sends a notification. No reply is expected.
func (tc *TestClient) Notify(method string, params any) {
	tc.t.Helper()

	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			tc.t.Fatalf("testutil: marshal params: %v", err)
		}
		req.Params = data
	}
	tc.deliver(req)
}

// Initialize performs the initialize handshake and returns the reply.
func (tc *TestClient) Initialize() *protocol.Response {
	tc.t.Helper()

	resp := tc.Call(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo": map[string]any{
			"name":    "testutil",
			"version": "0.0.0",
		},
	})
	tc.Notify(protocol.MethodInitialized, nil)
	return resp
}

func (tc *TestClient) deliver(req protocol.Request) {
	tc.t.Helper()

	data, err := json.Marshal(req)
	if err != nil {
		tc.t.Fatalf("testutil: marshal request: %v", err)
	}
	if err := tc.tr.Client().Deliver(data); err != nil {
		tc.t.Fatalf("testutil: deliver: %v", err)
	}
}

// Transport returns the underlying in-memory transport.
func (tc *TestClient) Transport() *transport.InMemory {
	return tc.tr
}

// Close tears down the client and server connection. Idempotent.
func (tc *TestClient) Close() {
	select {
	case <-tc.done:
		return
	default:
	}
	close(tc.done)
	_ = tc.srv.Close()
}
