package headless

import "sync"

// DefaultBufferCap bounds retained output at 1 MiB.
const DefaultBufferCap = 1 << 20

// Buffer is a thread-safe ring of bytes that retains only the most recent
// capacity bytes. Appends beyond capacity evict the oldest bytes; order
// within the retained window is preserved. Reads drain and clear.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	start  int
	length int
}

// NewBuffer creates a buffer retaining at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCap
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Write appends p, evicting the oldest bytes if the result would exceed
// capacity. Implements io.Writer so drain loops can use it directly.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.data)
	src := p
	if len(src) >= capacity {
		// Only the tail of p survives; the current content is fully evicted.
		src = src[len(src)-capacity:]
		b.start = 0
		b.length = 0
	}

	if over := b.length + len(src) - capacity; over > 0 {
		b.start = (b.start + over) % capacity
		b.length -= over
	}

	tail := (b.start + b.length) % capacity
	n := copy(b.data[tail:], src)
	copy(b.data, src[n:])
	b.length += len(src)

	return len(p), nil
}

// ReadAll drains the buffer, returning its entire content and clearing it.
// Returns an empty slice when nothing has accumulated.
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == 0 {
		return []byte{}
	}

	out := make([]byte, b.length)
	n := copy(out, b.data[b.start:min(b.start+b.length, len(b.data))])
	copy(out[n:], b.data)

	b.start = 0
	b.length = 0
	return out
}

// Len returns the number of retained bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}
