package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/proc"
)

const readChunkSize = 4096

// chunkBacklog bounds how many read chunks may queue before the reader
// goroutine blocks; the kernel's own PTY buffer provides backpressure
// beyond that.
const chunkBacklog = 64

// ErrNotSpawned is returned by I/O operations before Spawn has succeeded.
var ErrNotSpawned = errors.New("pty: not spawned")

// Spec describes the command to attach to the terminal.
type Spec struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
}

// Terminal is a pseudo-terminal with an attached child process.
//
// New allocates only the size descriptor; OS resources are acquired by
// Spawn. A Spawn failure whose root cause is a permission error (sandboxes
// without openpty capability) is detectable with
// errors.Is(err, os.ErrPermission) and is the headless-fallback trigger.
type Terminal struct {
	mu   sync.Mutex
	rows uint16
	cols uint16

	ptmx  *os.File
	child *proc.Handle
	log   *logging.Logger

	chunks chan []byte
	rdErr  chan error
	done   chan struct{}

	shutdownOnce sync.Once
}

// New allocates a terminal size descriptor. Never fails; no OS resources
// are held until Spawn.
func New(rows, cols uint16, log *logging.Logger) *Terminal {
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Terminal{rows: rows, cols: cols, log: log}
}

// Spawn opens a PTY pair and starts the command attached to the slave end.
func (t *Terminal) Spawn(spec Spec) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx != nil {
		return errors.New("pty: already spawned")
	}

	cmd := exec.Command(spec.Shell)
	cmd.Dir = spec.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: t.rows, Cols: t.cols})
	if err != nil {
		return fmt.Errorf("open pty: %w", err)
	}

	t.ptmx = ptmx
	t.child = proc.Attach(cmd)
	t.chunks = make(chan []byte, chunkBacklog)
	t.rdErr = make(chan error, 1)
	t.done = make(chan struct{})

	go t.readLoop(ptmx)

	return nil
}

// readLoop runs on its own goroutine because PTY reads block at the
// syscall level. It ends at EOF or on a read error; EIO is the normal
// Linux signal that the slave side has gone away.
func (t *Terminal) readLoop(ptmx *os.File) {
	for {
		buf := make([]byte, readChunkSize)
		n, err := ptmx.Read(buf)
		if n > 0 {
			select {
			case t.chunks <- buf[:n]:
			case <-t.done:
				return
			}
		}
		if err != nil {
			t.log.Debug("pty read loop ended", zap.Error(err))
			t.rdErr <- err
			return
		}
	}
}

// Write sends input to the terminal, writing the full buffer.
func (t *Terminal) Write(data []byte) error {
	t.mu.Lock()
	ptmx := t.ptmx
	t.mu.Unlock()

	if ptmx == nil {
		return ErrNotSpawned
	}

	for len(data) > 0 {
		n, err := ptmx.Write(data)
		if err != nil {
			return fmt.Errorf("write to pty: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Read returns any output already produced by the reader goroutine.
// Returns an empty slice when no data is pending.
func (t *Terminal) Read() ([]byte, error) {
	if t.chunks == nil {
		return nil, ErrNotSpawned
	}

	select {
	case chunk := <-t.chunks:
		return chunk, nil
	default:
		return []byte{}, nil
	}
}

// ReadTimeout races a read against a timer. Timer expiry yields an empty
// slice, not an error; absence of output is not a failure.
func (t *Terminal) ReadTimeout(d time.Duration) ([]byte, error) {
	if t.chunks == nil {
		return nil, ErrNotSpawned
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case chunk := <-t.chunks:
		return chunk, nil
	case <-timer.C:
		return []byte{}, nil
	}
}

// Resize propagates new dimensions to the live terminal.
func (t *Terminal) Resize(rows, cols uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx == nil {
		return ErrNotSpawned
	}
	if err := pty.Setsize(t.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	t.rows = rows
	t.cols = cols
	return nil
}

// Size returns the current dimensions.
func (t *Terminal) Size() (rows, cols uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows, t.cols
}

// Running reports whether the child process is still alive according to
// the OS.
func (t *Terminal) Running() bool {
	t.mu.Lock()
	child := t.child
	t.mu.Unlock()
	return child != nil && child.Alive()
}

// Shutdown closes the master side and force-kills the child. Deliberate
// and explicit: teardown must not depend on garbage collection of the
// file handle. Safe to call more than once.
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	ptmx := t.ptmx
	child := t.child
	done := t.done
	t.ptmx = nil
	t.mu.Unlock()

	if done != nil {
		t.shutdownOnce.Do(func() { close(done) })
	}
	if ptmx != nil {
		_ = ptmx.Close()
	}
	if child != nil {
		child.Kill()
	}
}
