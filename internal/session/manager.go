package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agentterm/termd/internal/config"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/shared/id"
)

// Manager creates, tracks and removes sessions. This is the entry point
// for collaborators (tool dispatch, HTTP handlers).
type Manager struct {
	sessions sync.Map // map[string]*Session

	defaults config.SessionConfig
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(defaults config.SessionConfig, log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		defaults: defaults,
		log:      log.Component("session"),
		metrics:  metrics,
	}
}

// Create registers a new session in Initializing state. Zero-value config
// fields are filled from the manager defaults; the shell falls back to
// $SHELL and finally /bin/sh.
func (m *Manager) Create(cfg Config) *Session {
	if cfg.Shell == "" {
		cfg.Shell = m.defaults.DefaultShell()
	}
	if cfg.Rows == 0 {
		cfg.Rows = m.defaults.Rows
	}
	if cfg.Cols == 0 {
		cfg.Cols = m.defaults.Cols
	}

	s := newSession(id.NewSessionID().String(), cfg, m.log, m.metrics)
	m.sessions.Store(s.ID, s)

	if m.metrics != nil {
		m.metrics.SessionsTotal.Inc()
		m.metrics.SessionsActive.Inc()
	}

	m.log.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("shell", cfg.Shell))
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	value, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	return value.(*Session), nil
}

// List returns all sessions, ordered by ID (ULIDs sort by creation time).
func (m *Manager) List() []*Session {
	var sessions []*Session
	m.sessions.Range(func(_, value interface{}) bool {
		sessions = append(sessions, value.(*Session))
		return true
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// Remove stops a session and forgets it. Removing an unknown ID returns
// ErrNotFound.
func (m *Manager) Remove(sessionID string) error {
	value, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return ErrNotFound
	}

	s := value.(*Session)
	if err := s.Stop(); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.SessionsActive.Dec()
	}
	return nil
}

// StopAll stops every session. Used during daemon shutdown.
func (m *Manager) StopAll() {
	m.sessions.Range(func(key, value interface{}) bool {
		_ = value.(*Session).Stop()
		return true
	})
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	n := 0
	m.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
