// Package pty allocates native pseudo-terminals and attaches commands to
// them via github.com/creack/pty.
//
// PTY file-descriptor reads block at the syscall level, so each terminal
// owns one reader goroutine that feeds a chunk channel; foreground reads
// select against that channel and never block past their bound.
package pty
