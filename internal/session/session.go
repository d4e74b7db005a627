package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/headless"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/pty"
	"github.com/agentterm/termd/internal/terminal"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusPaused       Status = "paused"
	StatusTerminating  Status = "terminating"
	StatusTerminated   Status = "terminated"
)

// Config is a session's immutable configuration.
type Config struct {
	Shell      string            `json:"shell"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"env,omitempty"`
	Rows       uint16            `json:"rows"`
	Cols       uint16            `json:"cols"`

	// ForceHeadless skips PTY allocation entirely.
	ForceHeadless bool `json:"force_headless"`
	// AllowHeadlessFallback permits falling back to pipes when PTY
	// allocation is denied by the OS.
	AllowHeadlessFallback bool `json:"allow_headless_fallback"`
}

// spawners create backend handles. Injected so tests can simulate PTY
// allocation failures without a real /dev/ptmx.
type spawners struct {
	pty      func(cfg Config, log *logging.Logger) (*terminal.Handle, error)
	headless func(cfg Config, log *logging.Logger) (*terminal.Handle, error)
}

func defaultSpawners() spawners {
	return spawners{
		pty: func(cfg Config, log *logging.Logger) (*terminal.Handle, error) {
			term := pty.New(cfg.Rows, cfg.Cols, log)
			if err := term.Spawn(pty.Spec{
				Shell:      cfg.Shell,
				WorkingDir: cfg.WorkingDir,
				Env:        cfg.Env,
			}); err != nil {
				return nil, err
			}
			return terminal.NewPTY(term), nil
		},
		headless: func(cfg Config, log *logging.Logger) (*terminal.Handle, error) {
			proc, err := headless.Spawn(cfg.Shell, cfg.WorkingDir, cfg.Env, log)
			if err != nil {
				return nil, err
			}
			return terminal.NewHeadless(proc), nil
		},
	}
}

// Session is one controllable process session. Status, handle, activity
// and metadata each have their own lock so a status probe never waits on
// in-flight I/O; lifecycleMu linearizes the transition operations.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg     Config
	spawn   spawners
	log     *logging.Logger
	metrics *monitoring.Metrics

	lifecycleMu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	handleMu sync.Mutex
	handle   *terminal.Handle

	activityMu   sync.Mutex
	lastActivity time.Time

	metaMu   sync.RWMutex
	metadata map[string]string
}

func newSession(id string, cfg Config, log *logging.Logger, metrics *monitoring.Metrics) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		cfg:          cfg,
		spawn:        defaultSpawners(),
		log:          log.WithSession(id),
		metrics:      metrics,
		status:       StatusInitializing,
		lastActivity: now,
		metadata:     make(map[string]string),
	}
}

// Config returns the session's immutable configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// LastActivity returns the time of the last start, resume or successful
// I/O operation.
func (s *Session) LastActivity() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

// Start attaches a backend and moves the session to Running. The status
// only becomes Running once a backend is attached; a failed start leaves
// the session in Initializing with the original error propagated.
func (s *Session) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if st := s.Status(); st != StatusInitializing {
		return &StateError{Op: "start", Status: st}
	}

	handle, err := s.attachBackend()
	if err != nil {
		return err
	}

	s.handleMu.Lock()
	s.handle = handle
	s.handleMu.Unlock()

	s.setStatus(StatusRunning)
	s.touch()

	s.log.Info("session started", zap.String("backend", string(handle.Kind())))
	return nil
}

// attachBackend selects and spawns a backend per the session config.
func (s *Session) attachBackend() (*terminal.Handle, error) {
	if s.cfg.ForceHeadless {
		return s.spawn.headless(s.cfg, s.log)
	}

	handle, err := s.spawn.pty(s.cfg, s.log)
	if err == nil {
		return handle, nil
	}

	if errors.Is(err, os.ErrPermission) && s.cfg.AllowHeadlessFallback {
		s.log.Warn("pty allocation denied, falling back to headless", zap.Error(err))
		if s.metrics != nil {
			s.metrics.SessionFallbacks.Inc()
		}
		return s.spawn.headless(s.cfg, s.log)
	}

	return nil, fmt.Errorf("start session: %w", err)
}

// Pause suspends a running session.
func (s *Session) Pause() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if st := s.Status(); st != StatusRunning {
		return &StateError{Op: "pause", Status: st}
	}
	s.setStatus(StatusPaused)
	return nil
}

// Resume returns a paused session to Running.
func (s *Session) Resume() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if st := s.Status(); st != StatusPaused {
		return &StateError{Op: "resume", Status: st}
	}
	s.setStatus(StatusRunning)
	s.touch()
	return nil
}

// Stop tears the session down. Idempotent: stopping a session that is not
// running (including one already stopped) is a no-op success.
func (s *Session) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	st := s.Status()
	if st != StatusRunning && st != StatusPaused {
		return nil
	}

	s.setStatus(StatusTerminating)

	s.handleMu.Lock()
	handle := s.handle
	s.handle = nil
	s.handleMu.Unlock()

	if handle != nil {
		handle.Shutdown()
	}

	s.setStatus(StatusTerminated)
	s.log.Info("session stopped")
	return nil
}

// SendInput writes input bytes to the active terminal.
func (s *Session) SendInput(data []byte) error {
	handle := s.currentHandle()
	if handle == nil {
		return ErrNoTerminal
	}
	if err := handle.Write(data); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.BytesWritten.Add(float64(len(data)))
	}
	s.touch()
	return nil
}

// ReadOutput returns pending output, or an empty slice when none has
// accumulated.
func (s *Session) ReadOutput() ([]byte, error) {
	handle := s.currentHandle()
	if handle == nil {
		return nil, ErrNoTerminal
	}
	out, err := handle.Read()
	if err == nil && len(out) > 0 {
		if s.metrics != nil {
			s.metrics.BytesRead.Add(float64(len(out)))
		}
		s.touch()
	}
	return out, err
}

// ReadOutputTimeout waits up to d for output. Timeout yields an empty
// slice, never an error.
func (s *Session) ReadOutputTimeout(d time.Duration) ([]byte, error) {
	handle := s.currentHandle()
	if handle == nil {
		return nil, ErrNoTerminal
	}
	out, err := handle.ReadTimeout(d)
	if err == nil && len(out) > 0 {
		if s.metrics != nil {
			s.metrics.BytesRead.Add(float64(len(out)))
		}
		s.touch()
	}
	return out, err
}

// Resize propagates new terminal dimensions to the active backend.
func (s *Session) Resize(rows, cols uint16) error {
	handle := s.currentHandle()
	if handle == nil {
		return ErrNoTerminal
	}
	return handle.Resize(rows, cols)
}

// BackendKind returns the active backend kind, or empty when no handle is
// attached.
func (s *Session) BackendKind() terminal.Kind {
	handle := s.currentHandle()
	if handle == nil {
		return ""
	}
	return handle.Kind()
}

// Alive reports whether the backing process is still running.
func (s *Session) Alive() bool {
	handle := s.currentHandle()
	return handle != nil && handle.Running()
}

func (s *Session) currentHandle() *terminal.Handle {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.handle
}

// SetMetadata stores an opaque key/value pair on the session.
func (s *Session) SetMetadata(key, value string) {
	s.metaMu.Lock()
	s.metadata[key] = value
	s.metaMu.Unlock()
}

// GetMetadata retrieves a metadata value.
func (s *Session) GetMetadata(key string) (string, bool) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// Info is the public representation of a session.
type Info struct {
	ID           string    `json:"id"`
	Shell        string    `json:"shell"`
	WorkingDir   string    `json:"working_dir"`
	Rows         uint16    `json:"rows"`
	Cols         uint16    `json:"cols"`
	Status       Status    `json:"status"`
	Backend      string    `json:"backend,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Info returns a snapshot of the session's externally visible state.
func (s *Session) Info() Info {
	return Info{
		ID:           s.ID,
		Shell:        s.cfg.Shell,
		WorkingDir:   s.cfg.WorkingDir,
		Rows:         s.cfg.Rows,
		Cols:         s.cfg.Cols,
		Status:       s.Status(),
		Backend:      string(s.BackendKind()),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
	}
}
