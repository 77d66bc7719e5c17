package transport

import "sync"

// broadcaster is a fan-out publish/subscribe primitive. Every subscriber
// observes every message published after it subscribed, in publish order,
// at most once. Each subscriber has its own unbounded FIFO queue, so a
// slow consumer never blocks the publisher or its siblings.
type broadcaster[T any] struct {
	mu     sync.Mutex
	subs   []*subscriber[T]
	closed bool
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{}
}

// Subscribe registers a new listener. If the broadcaster is already
// closed the returned channel is closed immediately.
func (b *broadcaster[T]) Subscribe() <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := newSubscriber[T]()
	if b.closed {
		s.close()
		return s.out
	}
	b.subs = append(b.subs, s)
	return s.out
}

// Publish delivers v to all current subscribers. It reports whether the
// broadcaster was still open.
func (b *broadcaster[T]) Publish(v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	for _, s := range b.subs {
		s.push(v)
	}
	return true
}

// Close ends the stream: every subscriber channel closes promptly,
// whether or not its consumer is still reading. Messages still queued at
// close are dropped. Closing twice is a no-op.
func (b *broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.close()
	}
	b.subs = nil
}

// subscriber pumps an unbounded queue into an unbuffered channel. The
// done channel unblocks the pump when the consumer is gone, so close
// never strands the goroutine.
type subscriber[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed bool
	done   chan struct{}
	out    chan T
}

func newSubscriber[T any]() *subscriber[T] {
	s := &subscriber[T]{
		out:  make(chan T),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.queue = append(s.queue, v)
	s.cond.Signal()
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.cond.Signal()
}

func (s *subscriber[T]) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			close(s.out)
			return
		}
	}
}
