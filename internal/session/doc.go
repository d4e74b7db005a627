// Package session owns the terminal-session lifecycle.
//
// A Session moves through Initializing, Running, Paused, Terminating and
// Terminated under explicit transition guards. Start selects a backend:
// PTY by default, headless when forced, and headless as a fallback when
// PTY allocation is denied by the OS and fallback is allowed. The Manager
// is the entry point through which collaborators create, look up and
// remove sessions.
package session
