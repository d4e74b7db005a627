package jsonrpc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned by Send on a closed transport.
var ErrClosed = errors.New("jsonrpc: transport closed")

// maxLineBytes bounds a single protocol line. Large enough for a full
// drained output buffer plus envelope overhead.
const maxLineBytes = 4 << 20

// Transport moves newline-delimited messages between peers.
//
// Receive returns (nil, nil) on clean shutdown or EOF — absence of a peer
// is not an error. A malformed line yields a parse error and leaves the
// transport usable for subsequent calls. Close is idempotent.
type Transport interface {
	Send(*Message) error
	Receive() (*Message, error)
	Close() error
}

// Stdio is a line-oriented transport over an arbitrary reader/writer pair,
// normally the process's stdin/stdout. A dedicated goroutine reads lines
// so that Receive can race input against the shutdown signal: whichever
// resolves first wins, and a shutdown abandons pending input.
type Stdio struct {
	writeMu sync.Mutex
	w       *bufio.Writer

	lines    chan []byte
	shutdown chan struct{}
	once     sync.Once
}

// NewStdio creates a stdio transport and starts its read loop.
func NewStdio(r io.Reader, w io.Writer) *Stdio {
	t := &Stdio{
		w:        bufio.NewWriter(w),
		lines:    make(chan []byte),
		shutdown: make(chan struct{}),
	}
	go t.readLoop(r)
	return t
}

func (t *Stdio) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		select {
		case t.lines <- line:
		case <-t.shutdown:
			return
		}
	}
	close(t.lines)
}

// Send serializes the message to one line, writes and flushes it.
func (t *Stdio) Send(m *Message) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("jsonrpc: marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.shutdown:
		return ErrClosed
	default:
	}

	if _, err := t.w.Write(data); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	return t.w.Flush()
}

// Receive reads one line. Shutdown, EOF and empty lines all yield
// (nil, nil); malformed JSON yields a parse error without poisoning the
// transport.
func (t *Stdio) Receive() (*Message, error) {
	select {
	case line, ok := <-t.lines:
		if !ok {
			return nil, nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return nil, nil
		}
		return Parse(line)
	case <-t.shutdown:
		return nil, nil
	}
}

// Close signals shutdown, unblocking any pending Receive. Idempotent.
func (t *Stdio) Close() error {
	t.once.Do(func() {
		close(t.shutdown)
	})
	return nil
}
