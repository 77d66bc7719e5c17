package transport

import (
	"context"
	"encoding/json"
	"sync"
)

// Message is an opaque wire message. The transport layer never inspects
// its contents; interpretation belongs to the protocol layer.
type Message = json.RawMessage

// ServerTransport is the capability contract every binding implements.
//
// A transport moves through three states: constructed, active, and closed.
// Closed is terminal; no transport transitions out of it.
type ServerTransport interface {
	// Messages returns a subscription to the inbound message stream.
	// Each call returns an independent subscription that observes every
	// message received after the call, in arrival order, at most once.
	// The channel is closed when the transport closes.
	Messages() <-chan Message

	// Send enqueues a message for delivery to the peer. Sending on a
	// closed transport is not an error; the message is silently dropped.
	Send(msg Message) error

	// Done returns a channel closed exactly once, when the transport
	// reaches its terminal closed state.
	Done() <-chan struct{}

	// Err reports the failure that closed the transport, if any. It
	// returns nil before Done is closed and nil after a graceful close.
	Err() error

	// Close requests termination. The first call performs teardown and
	// completes the close signal; subsequent calls are no-ops.
	Close() error
}

// Starter is implemented by bindings whose availability is not immediate.
// Start binds the underlying listener and returns once the transport is
// ready to carry messages. Start is idempotent.
type Starter interface {
	Start(ctx context.Context) error
}

// closeSignal is a one-shot completion cell. Only the first completion,
// success or failure, is recorded; any number of waiters may observe it.
type closeSignal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCloseSignal() *closeSignal {
	return &closeSignal{done: make(chan struct{})}
}

// complete records the result and releases waiters. Later calls lose.
func (s *closeSignal) complete(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *closeSignal) Done() <-chan struct{} {
	return s.done
}

// Err returns the recorded failure. It is nil until the signal completes.
func (s *closeSignal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
