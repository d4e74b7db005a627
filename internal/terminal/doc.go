// Package terminal presents one I/O contract over the PTY and headless
// backends. Handle is a closed union with a single dispatch point per
// operation; callers never learn which backend is live.
package terminal
