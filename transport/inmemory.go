package transport

import "sync"

// InMemory is a duplex in-process transport pairing a server with a
// co-located client. No network stack is involved: the client writes into
// an inbound channel and reads from an outbound channel, the dual of the
// server-facing Messages/Send pair.
//
// Three broadcast channels back the pairing: inbound (fed by the client),
// internal (the server's message source, a pure forward of inbound), and
// outbound (the client's message source). The forward from inbound to
// internal is installed exactly once at construction and suppressed once
// the transport closes.
type InMemory struct {
	inbound  *broadcaster[Message]
	internal *broadcaster[Message]
	outbound *broadcaster[Message]

	sig *closeSignal

	mu     sync.Mutex
	closed bool
}

var _ ServerTransport = (*InMemory)(nil)

// NewInMemory creates an in-memory transport. The transport is active
// immediately; no start step exists.
func NewInMemory() *InMemory {
	t := &InMemory{
		inbound:  newBroadcaster[Message](),
		internal: newBroadcaster[Message](),
		outbound: newBroadcaster[Message](),
		sig:      newCloseSignal(),
	}
	go t.forward(t.inbound.Subscribe())
	return t
}

// forward relays inbound messages to the internal channel until the
// inbound stream ends. End-of-stream is a graceful disconnect: the whole
// transport closes.
func (t *InMemory) forward(in <-chan Message) {
	for msg := range in {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			continue
		}
		t.internal.Publish(msg)
	}
	_ = t.Close()
}

// Messages returns a subscription to messages delivered by the paired client.
func (t *InMemory) Messages() <-chan Message {
	return t.internal.Subscribe()
}

// Send makes msg observable on the client's message stream. Sends after
// close are dropped.
func (t *InMemory) Send(msg Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil
	}
	t.outbound.Publish(msg)
	return nil
}

// Done returns the terminal close signal.
func (t *InMemory) Done() <-chan struct{} {
	return t.sig.Done()
}

// Err reports the fault that closed the transport, if any.
func (t *InMemory) Err() error {
	return t.sig.Err()
}

// Closed reports whether the transport has reached its terminal state.
func (t *InMemory) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close tears down all three channels and completes the close signal with
// success unless a fault already completed it. Close is idempotent.
func (t *InMemory) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.internal.Close()
	t.outbound.Close()
	t.inbound.Close()
	t.sig.complete(nil)
	return nil
}

// Client returns the paired client's view of the transport. Closing from
// either end tears down the whole pairing.
func (t *InMemory) Client() *InMemoryClient {
	return &InMemoryClient{t: t}
}

// InMemoryClient is the client-side view of an InMemory transport: a
// message stream to consume and a sink to write into. It holds no state
// of its own; any number of views may coexist.
type InMemoryClient struct {
	t *InMemory
}

// Messages returns a subscription to messages sent by the server.
func (c *InMemoryClient) Messages() <-chan Message {
	return c.t.outbound.Subscribe()
}

// Deliver pushes a message into the server's inbound stream. Deliveries
// after close are dropped.
func (c *InMemoryClient) Deliver(msg Message) error {
	c.t.inbound.Publish(msg)
	return nil
}

// Fail raises a fault on the inbound side. The fault becomes the failure
// value of the transport's close signal and closes the transport
// immediately. A later graceful end-of-stream does not overwrite it.
func (c *InMemoryClient) Fail(err error) {
	c.t.sig.complete(err)
	_ = c.t.Close()
}

// CloseSend signals a graceful end-of-stream from the client. The
// transport treats it as a disconnect and closes.
func (c *InMemoryClient) CloseSend() {
	_ = c.t.Close()
}
