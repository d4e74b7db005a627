package session

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentterm/termd/internal/config"
	"github.com/agentterm/termd/internal/logging"
)

func newTestManager() *Manager {
	return NewManager(config.SessionConfig{
		Shell: "/bin/sh",
		Rows:  24,
		Cols:  80,
	}, logging.NewNop(), nil)
}

func TestManagerCreateFillsDefaults(t *testing.T) {
	m := newTestManager()

	s := m.Create(Config{})
	t.Cleanup(func() { _ = m.Remove(s.ID) })

	cfg := s.Config()
	assert.Equal(t, "/bin/sh", cfg.Shell)
	assert.Equal(t, uint16(24), cfg.Rows)
	assert.Equal(t, uint16(80), cfg.Cols)
	assert.Equal(t, StatusInitializing, s.Status())
}

func TestManagerCreateKeepsExplicitConfig(t *testing.T) {
	m := newTestManager()

	s := m.Create(Config{Shell: "/bin/bash", Rows: 50, Cols: 200})
	t.Cleanup(func() { _ = m.Remove(s.ID) })

	cfg := s.Config()
	assert.Equal(t, "/bin/bash", cfg.Shell)
	assert.Equal(t, uint16(50), cfg.Rows)
	assert.Equal(t, uint16(200), cfg.Cols)
}

func TestManagerGet(t *testing.T) {
	m := newTestManager()
	s := m.Create(Config{})

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("sess_does_not_exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerListSorted(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 5; i++ {
		m.Create(Config{})
	}

	sessions := m.List()
	require.Len(t, sessions, 5)

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestManagerRemove(t *testing.T) {
	m := newTestManager()
	s := m.Create(Config{})
	s.spawn = stubSpawners()
	require.NoError(t, s.Start())

	require.NoError(t, m.Remove(s.ID))
	assert.Equal(t, StatusTerminated, s.Status())
	assert.Equal(t, 0, m.Count())

	assert.ErrorIs(t, m.Remove(s.ID), ErrNotFound)
}

func TestManagerStopAll(t *testing.T) {
	m := newTestManager()
	var started []*Session
	for i := 0; i < 3; i++ {
		s := m.Create(Config{})
		s.spawn = stubSpawners()
		require.NoError(t, s.Start())
		started = append(started, s)
	}

	m.StopAll()

	for _, s := range started {
		assert.Equal(t, StatusTerminated, s.Status())
	}
	// Sessions stay listed until removed; only their processes are gone.
	assert.Equal(t, 3, m.Count())
}

func TestManagerUniqueIDs(t *testing.T) {
	m := newTestManager()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s := m.Create(Config{})
		assert.False(t, seen[s.ID], "duplicate session id %s", s.ID)
		seen[s.ID] = true
	}
}
