package jsonrpc

import "sync"

// InMemory is a channel-backed transport for in-process controllers and
// tests. Create a connected pair with NewInMemoryPair.
type InMemory struct {
	in     chan *Message
	out    chan *Message
	closed chan struct{}
	once   *sync.Once
}

// inMemoryBacklog buffers messages between the two ends so a Send does not
// require a concurrent Receive on the peer.
const inMemoryBacklog = 16

// NewInMemoryPair returns two cross-wired transports: messages sent on one
// are received on the other. Closing either side shuts down both.
func NewInMemoryPair() (*InMemory, *InMemory) {
	ab := make(chan *Message, inMemoryBacklog)
	ba := make(chan *Message, inMemoryBacklog)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &InMemory{in: ba, out: ab, closed: closed, once: once}
	b := &InMemory{in: ab, out: ba, closed: closed, once: once}
	return a, b
}

// Send delivers the message to the peer.
func (t *InMemory) Send(m *Message) error {
	select {
	case <-t.closed:
		return ErrClosed
	case t.out <- m:
		return nil
	}
}

// Receive returns the next message from the peer, or (nil, nil) once the
// pair is closed.
func (t *InMemory) Receive() (*Message, error) {
	select {
	case <-t.closed:
		return nil, nil
	case m := <-t.in:
		return m, nil
	}
}

// Close shuts down both ends of the pair. Idempotent.
func (t *InMemory) Close() error {
	t.once.Do(func() {
		close(t.closed)
	})
	return nil
}
