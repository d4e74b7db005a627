package pty

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawnShell opens a real PTY running /bin/sh, skipping the test in
// environments where PTY allocation is denied.
func spawnShell(t *testing.T) *Terminal {
	t.Helper()
	term := New(24, 80, nil)
	err := term.Spawn(Spec{Shell: "/bin/sh"})
	if errors.Is(err, os.ErrPermission) {
		t.Skip("pty allocation denied in this environment")
	}
	require.NoError(t, err)
	t.Cleanup(term.Shutdown)
	return term
}

// collect polls ReadTimeout until the accumulated output contains want
// or the deadline passes.
func collect(t *testing.T, term *Terminal, want string, deadline time.Duration) string {
	t.Helper()
	var sb strings.Builder
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		out, err := term.ReadTimeout(100 * time.Millisecond)
		require.NoError(t, err)
		sb.Write(out)
		if strings.Contains(sb.String(), want) {
			break
		}
	}
	return sb.String()
}

func TestNewAppliesDefaults(t *testing.T) {
	term := New(0, 0, nil)
	rows, cols := term.Size()
	assert.Equal(t, uint16(24), rows)
	assert.Equal(t, uint16(80), cols)

	term = New(50, 200, nil)
	rows, cols = term.Size()
	assert.Equal(t, uint16(50), rows)
	assert.Equal(t, uint16(200), cols)
}

func TestIOBeforeSpawn(t *testing.T) {
	term := New(24, 80, nil)

	assert.ErrorIs(t, term.Write([]byte("x")), ErrNotSpawned)
	_, err := term.Read()
	assert.ErrorIs(t, err, ErrNotSpawned)
	_, err = term.ReadTimeout(time.Millisecond)
	assert.ErrorIs(t, err, ErrNotSpawned)
	assert.ErrorIs(t, term.Resize(40, 120), ErrNotSpawned)
	assert.False(t, term.Running())
}

func TestSpawnEcho(t *testing.T) {
	term := spawnShell(t)
	assert.True(t, term.Running())

	require.NoError(t, term.Write([]byte("echo pty-roundtrip\n")))

	out := collect(t, term, "pty-roundtrip", 5*time.Second)
	assert.Contains(t, out, "pty-roundtrip")
}

func TestSpawnTwice(t *testing.T) {
	term := spawnShell(t)
	assert.Error(t, term.Spawn(Spec{Shell: "/bin/sh"}))
}

func TestReadTimeoutNoOutput(t *testing.T) {
	term := spawnShell(t)

	// Drain whatever the shell printed on startup first.
	collect(t, term, "\x00never-matches", 500*time.Millisecond)

	start := time.Now()
	out, err := term.ReadTimeout(150 * time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestResize(t *testing.T) {
	term := spawnShell(t)

	require.NoError(t, term.Resize(50, 132))
	rows, cols := term.Size()
	assert.Equal(t, uint16(50), rows)
	assert.Equal(t, uint16(132), cols)
}

func TestShutdownStopsChild(t *testing.T) {
	term := spawnShell(t)
	require.True(t, term.Running())

	term.Shutdown()
	term.Shutdown() // idempotent

	// The child is killed asynchronously; poll briefly.
	deadline := time.Now().Add(5 * time.Second)
	for term.Running() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.False(t, term.Running())

	assert.ErrorIs(t, term.Write([]byte("x")), ErrNotSpawned)
}

func TestSpawnBadShell(t *testing.T) {
	term := New(24, 80, nil)
	err := term.Spawn(Spec{Shell: "/nonexistent/shell"})
	if errors.Is(err, os.ErrPermission) {
		t.Skip("pty allocation denied in this environment")
	}
	assert.Error(t, err)
}
