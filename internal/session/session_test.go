package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/terminal"
)

// stubSpawners routes both backends to a detached handle so lifecycle
// tests run without real child processes.
func stubSpawners() spawners {
	return spawners{
		pty: func(Config, *logging.Logger) (*terminal.Handle, error) {
			return &terminal.Handle{}, nil
		},
		headless: func(Config, *logging.Logger) (*terminal.Handle, error) {
			return &terminal.Handle{}, nil
		},
	}
}

func newStubSession(cfg Config) *Session {
	s := newSession("sess_test", cfg, logging.NewNop(), nil)
	s.spawn = stubSpawners()
	return s
}

func TestSessionStartsInInitializing(t *testing.T) {
	s := newStubSession(Config{})
	assert.Equal(t, StatusInitializing, s.Status())
	assert.False(t, s.Alive())
}

func TestSessionLifecycle(t *testing.T) {
	s := newStubSession(Config{})

	require.NoError(t, s.Start())
	assert.Equal(t, StatusRunning, s.Status())

	require.NoError(t, s.Pause())
	assert.Equal(t, StatusPaused, s.Status())

	require.NoError(t, s.Resume())
	assert.Equal(t, StatusRunning, s.Status())

	require.NoError(t, s.Stop())
	assert.Equal(t, StatusTerminated, s.Status())
}

func TestSessionDoubleStart(t *testing.T) {
	s := newStubSession(Config{})
	require.NoError(t, s.Start())

	err := s.Start()
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "start", stateErr.Op)
	assert.Equal(t, StatusRunning, stateErr.Status)

	// The first start's state is untouched.
	assert.Equal(t, StatusRunning, s.Status())
}

func TestSessionTransitionGuards(t *testing.T) {
	s := newStubSession(Config{})

	// Pause and resume both require an active session.
	assert.True(t, IsStateError(s.Pause()))
	assert.True(t, IsStateError(s.Resume()))

	require.NoError(t, s.Start())
	assert.True(t, IsStateError(s.Resume())) // running, not paused

	require.NoError(t, s.Pause())
	assert.True(t, IsStateError(s.Pause())) // already paused
}

func TestSessionStopIdempotent(t *testing.T) {
	s := newStubSession(Config{})

	// Stopping before start is a no-op success.
	require.NoError(t, s.Stop())
	assert.Equal(t, StatusInitializing, s.Status())

	s = newStubSession(Config{})
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, StatusTerminated, s.Status())
}

func TestSessionStopFromPaused(t *testing.T) {
	s := newStubSession(Config{})
	require.NoError(t, s.Start())
	require.NoError(t, s.Pause())
	require.NoError(t, s.Stop())
	assert.Equal(t, StatusTerminated, s.Status())
}

func TestSessionFailedStartStaysInitializing(t *testing.T) {
	s := newStubSession(Config{})
	spawnErr := errors.New("no such shell")
	s.spawn.pty = func(Config, *logging.Logger) (*terminal.Handle, error) {
		return nil, spawnErr
	}

	err := s.Start()
	require.ErrorIs(t, err, spawnErr)
	assert.Equal(t, StatusInitializing, s.Status())

	// The failure was not terminal for the session; a fixed spawner
	// can still start it.
	s.spawn = stubSpawners()
	require.NoError(t, s.Start())
	assert.Equal(t, StatusRunning, s.Status())
}

func TestSessionHeadlessFallbackOnPermissionDenied(t *testing.T) {
	s := newStubSession(Config{AllowHeadlessFallback: true})
	s.spawn.pty = func(Config, *logging.Logger) (*terminal.Handle, error) {
		return nil, fmt.Errorf("open pty: %w", os.ErrPermission)
	}
	headlessUsed := false
	s.spawn.headless = func(Config, *logging.Logger) (*terminal.Handle, error) {
		headlessUsed = true
		return &terminal.Handle{}, nil
	}

	require.NoError(t, s.Start())
	assert.True(t, headlessUsed)
	assert.Equal(t, StatusRunning, s.Status())
}

func TestSessionNoFallbackWhenDisallowed(t *testing.T) {
	s := newStubSession(Config{AllowHeadlessFallback: false})
	s.spawn.pty = func(Config, *logging.Logger) (*terminal.Handle, error) {
		return nil, fmt.Errorf("open pty: %w", os.ErrPermission)
	}
	s.spawn.headless = func(Config, *logging.Logger) (*terminal.Handle, error) {
		t.Fatal("headless spawner must not run when fallback is disallowed")
		return nil, nil
	}

	err := s.Start()
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, StatusInitializing, s.Status())
}

func TestSessionNoFallbackOnOtherErrors(t *testing.T) {
	s := newStubSession(Config{AllowHeadlessFallback: true})
	spawnErr := errors.New("fork failed")
	s.spawn.pty = func(Config, *logging.Logger) (*terminal.Handle, error) {
		return nil, spawnErr
	}
	s.spawn.headless = func(Config, *logging.Logger) (*terminal.Handle, error) {
		t.Fatal("fallback is reserved for permission errors")
		return nil, nil
	}

	require.ErrorIs(t, s.Start(), spawnErr)
}

func TestSessionForceHeadless(t *testing.T) {
	s := newStubSession(Config{ForceHeadless: true})
	s.spawn.pty = func(Config, *logging.Logger) (*terminal.Handle, error) {
		t.Fatal("pty spawner must not run with force_headless")
		return nil, nil
	}

	require.NoError(t, s.Start())
	assert.Equal(t, StatusRunning, s.Status())
}

func TestSessionIOWithoutHandle(t *testing.T) {
	s := newStubSession(Config{})

	assert.ErrorIs(t, s.SendInput([]byte("x")), ErrNoTerminal)
	_, err := s.ReadOutput()
	assert.ErrorIs(t, err, ErrNoTerminal)
	_, err = s.ReadOutputTimeout(time.Millisecond)
	assert.ErrorIs(t, err, ErrNoTerminal)
	assert.ErrorIs(t, s.Resize(40, 120), ErrNoTerminal)
}

func TestSessionIOAfterStop(t *testing.T) {
	s := newStubSession(Config{})
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	assert.ErrorIs(t, s.SendInput([]byte("x")), ErrNoTerminal)
}

func TestSessionEndToEndHeadless(t *testing.T) {
	s := newSession("sess_e2e", Config{
		Shell:         "/bin/sh",
		ForceHeadless: true,
	}, logging.NewNop(), nil)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.Start())
	assert.Equal(t, terminal.KindHeadless, s.BackendKind())
	assert.True(t, s.Alive())

	require.NoError(t, s.SendInput([]byte("echo session-roundtrip\n")))

	var sb strings.Builder
	end := time.Now().Add(5 * time.Second)
	for time.Now().Before(end) {
		out, err := s.ReadOutputTimeout(100 * time.Millisecond)
		require.NoError(t, err)
		sb.Write(out)
		if strings.Contains(sb.String(), "session-roundtrip") {
			break
		}
	}
	assert.Contains(t, sb.String(), "session-roundtrip")

	// Resize on a headless session is accepted and ignored.
	assert.NoError(t, s.Resize(50, 200))

	require.NoError(t, s.Stop())
	assert.Equal(t, StatusTerminated, s.Status())
}

func TestSessionMetadata(t *testing.T) {
	s := newStubSession(Config{})

	_, ok := s.GetMetadata("purpose")
	assert.False(t, ok)

	s.SetMetadata("purpose", "build")
	v, ok := s.GetMetadata("purpose")
	require.True(t, ok)
	assert.Equal(t, "build", v)

	s.SetMetadata("purpose", "test")
	v, _ = s.GetMetadata("purpose")
	assert.Equal(t, "test", v)
}

func TestSessionInfoSnapshot(t *testing.T) {
	s := newStubSession(Config{Shell: "/bin/sh", Rows: 24, Cols: 80})
	require.NoError(t, s.Start())

	info := s.Info()
	assert.Equal(t, s.ID, info.ID)
	assert.Equal(t, "/bin/sh", info.Shell)
	assert.Equal(t, uint16(24), info.Rows)
	assert.Equal(t, uint16(80), info.Cols)
	assert.Equal(t, StatusRunning, info.Status)
	assert.False(t, info.CreatedAt.IsZero())
	assert.False(t, info.LastActivity.Before(info.CreatedAt))
}
