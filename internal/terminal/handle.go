package terminal

import (
	"errors"
	"time"

	"github.com/agentterm/termd/internal/headless"
	"github.com/agentterm/termd/internal/pty"
)

// Kind identifies which backend a Handle wraps.
type Kind string

const (
	KindPTY      Kind = "pty"
	KindHeadless Kind = "headless"
)

// ErrNoBackend is returned by operations on a zero-value Handle.
var ErrNoBackend = errors.New("terminal: no backend attached")

// Handle wraps exactly one backend behind a uniform contract:
// Write, Read, ReadTimeout, Running, Shutdown.
type Handle struct {
	kind     Kind
	pty      *pty.Terminal
	headless *headless.Process
}

// NewPTY wraps a spawned PTY terminal.
func NewPTY(t *pty.Terminal) *Handle {
	return &Handle{kind: KindPTY, pty: t}
}

// NewHeadless wraps a spawned headless process.
func NewHeadless(p *headless.Process) *Handle {
	return &Handle{kind: KindHeadless, headless: p}
}

// Kind returns the active backend kind.
func (h *Handle) Kind() Kind {
	return h.kind
}

// Write sends input to the active backend.
func (h *Handle) Write(data []byte) error {
	switch h.kind {
	case KindPTY:
		return h.pty.Write(data)
	case KindHeadless:
		return h.headless.Write(data)
	default:
		return ErrNoBackend
	}
}

// Read returns pending output, or an empty slice when none has
// accumulated.
func (h *Handle) Read() ([]byte, error) {
	switch h.kind {
	case KindPTY:
		return h.pty.Read()
	case KindHeadless:
		return h.headless.Read()
	default:
		return nil, ErrNoBackend
	}
}

// ReadTimeout waits up to d for output. Timeout yields an empty slice,
// never an error.
func (h *Handle) ReadTimeout(d time.Duration) ([]byte, error) {
	switch h.kind {
	case KindPTY:
		return h.pty.ReadTimeout(d)
	case KindHeadless:
		return h.headless.ReadTimeout(d)
	default:
		return nil, ErrNoBackend
	}
}

// Resize propagates new dimensions. Headless processes have no terminal to
// resize; the operation is accepted and ignored.
func (h *Handle) Resize(rows, cols uint16) error {
	switch h.kind {
	case KindPTY:
		return h.pty.Resize(rows, cols)
	case KindHeadless:
		return nil
	default:
		return ErrNoBackend
	}
}

// Running reports whether the backing process is still alive.
func (h *Handle) Running() bool {
	switch h.kind {
	case KindPTY:
		return h.pty.Running()
	case KindHeadless:
		return h.headless.Running()
	default:
		return false
	}
}

// Shutdown tears the backend down. Best-effort and idempotent.
func (h *Handle) Shutdown() {
	switch h.kind {
	case KindPTY:
		h.pty.Shutdown()
	case KindHeadless:
		h.headless.Shutdown()
	}
}
