package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
)

// Spec describes a child process to spawn.
type Spec struct {
	Path       string
	Args       []string
	WorkingDir string
	Env        map[string]string // merged over the parent environment
}

// Handle wraps a started command with non-blocking liveness and teardown.
// Wait is driven by a single background goroutine so that Alive never
// blocks and the OS process is reaped exactly once.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

// Attach wraps an already-started command. The caller must not call
// cmd.Wait itself.
func Attach(cmd *exec.Cmd) *Handle {
	h := &Handle{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

// Alive reports whether the OS still considers the process running.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Kill force-terminates the process. Failures are ignored; the process may
// already be gone.
func (h *Handle) Kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// Wait blocks until the process exits and returns its wait error.
func (h *Handle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// Done returns a channel closed when the process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Child is a supervised process with piped stdio.
type Child struct {
	*Handle

	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Spawn starts a child with piped stdin/stdout/stderr.
func Spawn(spec Spec) (*Child, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = mergeEnv(spec.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	return &Child{
		Handle: Attach(cmd),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

// mergeEnv layers spec env vars over the parent environment in a stable
// order. Key order is irrelevant to the child but stable output keeps the
// merge deterministic for tests.
func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}
