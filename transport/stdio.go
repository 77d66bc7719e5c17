package transport

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Stdio carries newline-delimited messages over stdin/stdout. It is
// active immediately after construction; no start step exists.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	messages *broadcaster[Message]
	sig      *closeSignal

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

var _ ServerTransport = (*Stdio)(nil)

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.errOut = w
	}
}

// NewStdio creates a stdio transport and begins reading immediately.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:       os.Stdin,
		out:      os.Stdout,
		errOut:   os.Stderr,
		messages: newBroadcaster[Message](),
		sig:      newCloseSignal(),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()
	return s
}

// readLoop publishes each input line as an inbound message. EOF is a
// graceful disconnect; a read error is recorded as the close failure.
func (s *Stdio) readLoop() {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.messages.Publish(Message(line))
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		// A read error on an already-closed transport is just teardown noise.
		if !closed {
			s.sig.complete(err)
		}
	}
	_ = s.Close()
}

// Addr returns the transport's address description.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Messages returns a subscription to inbound messages.
func (s *Stdio) Messages() <-chan Message {
	return s.messages.Subscribe()
}

// Send writes msg followed by a newline. Sends after close are dropped.
func (s *Stdio) Send(msg Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(msg); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\n"))
	return err
}

// Done returns the terminal close signal.
func (s *Stdio) Done() <-chan struct{} {
	return s.sig.Done()
}

// Err reports the failure that closed the transport, if any.
func (s *Stdio) Err() error {
	return s.sig.Err()
}

// Close tears down the transport. Idempotent.
func (s *Stdio) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.messages.Close()
	s.sig.complete(nil)
	if c, ok := s.in.(io.Closer); ok && s.in != os.Stdin {
		_ = c.Close()
	}
	return nil
}
