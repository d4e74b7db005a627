package headless

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/proc"
)

const drainChunkSize = 4096

// pollInterval paces ReadTimeout's checks against the shared buffer.
const pollInterval = 10 * time.Millisecond

// ErrStdinClosed is returned by Write after the child's stdin has been
// closed or the process has been shut down.
var ErrStdinClosed = errors.New("headless: stdin closed")

// Process is a shell running over plain pipes. Output from stdout and
// stderr is drained into one bounded buffer in arrival order.
type Process struct {
	child *proc.Child
	out   *Buffer
	log   *logging.Logger

	stdin       io.WriteCloser
	stdinClosed chan struct{}
	closeOnce   sync.Once
}

// Spawn starts the shell with piped stdio and begins draining its output.
func Spawn(shell, workingDir string, env map[string]string, log *logging.Logger) (*Process, error) {
	if log == nil {
		log = logging.NewNop()
	}

	child, err := proc.Spawn(proc.Spec{
		Path:       shell,
		WorkingDir: workingDir,
		Env:        env,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn headless shell: %w", err)
	}

	p := &Process{
		child:       child,
		out:         NewBuffer(DefaultBufferCap),
		log:         log,
		stdin:       child.Stdin,
		stdinClosed: make(chan struct{}),
	}

	go p.drain("stdout", child.Stdout)
	go p.drain("stderr", child.Stderr)

	return p, nil
}

// drain copies one output stream into the shared buffer until EOF or a
// read error. Errors end visibility into that stream, nothing more.
func (p *Process) drain(stream string, r io.Reader) {
	buf := make([]byte, drainChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.out.Write(buf[:n])
		}
		if err != nil {
			p.log.Debug("drain loop ended",
				zap.String("stream", stream),
				zap.Error(err))
			return
		}
	}
}

// Write sends input to the child's stdin.
func (p *Process) Write(data []byte) error {
	select {
	case <-p.stdinClosed:
		return ErrStdinClosed
	default:
	}

	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("write to headless stdin: %w", err)
	}
	return nil
}

// Read drains the buffered output. Destructive: bytes read once are gone.
func (p *Process) Read() ([]byte, error) {
	return p.out.ReadAll(), nil
}

// ReadTimeout waits up to d for output to accumulate. A timeout yields an
// empty slice, never an error; absence of output is not a failure.
func (p *Process) ReadTimeout(d time.Duration) ([]byte, error) {
	if out := p.out.ReadAll(); len(out) > 0 {
		return out, nil
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-deadline.C:
			return []byte{}, nil
		case <-tick.C:
			if out := p.out.ReadAll(); len(out) > 0 {
				return out, nil
			}
		}
	}
}

// Running reports whether the OS still considers the child running.
func (p *Process) Running() bool {
	return p.child.Alive()
}

// Shutdown force-kills the child if still present and closes stdin.
// Best-effort: kill failures are ignored. Safe to call more than once.
func (p *Process) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.stdinClosed)
		_ = p.stdin.Close()
	})
	p.child.Kill()
}

// Wait blocks until the child exits.
func (p *Process) Wait() error {
	return p.child.Wait()
}
