// Package proc supervises child processes.
//
// It spawns plain children with piped stdio, and wraps already-started
// commands (such as those attached to a PTY) with a non-blocking liveness
// check, a best-effort kill, and an exactly-once wait.
package proc
