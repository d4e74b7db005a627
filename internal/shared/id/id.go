// Package id provides prefixed ULID generation for the engine.
//
// ULIDs are lexicographically sortable by creation time, and the type
// prefixes (sess_*, req_*, conn_*) keep logs readable and prevent IDs from
// one namespace being used in another.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session.
type SessionID string

// RequestID identifies a control-plane request.
type RequestID string

// ConnID identifies a control-plane connection (e.g. a websocket).
type ConnID string

const (
	SessionPrefix = "sess"
	RequestPrefix = "req"
	ConnPrefix    = "conn"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConnID generates a new connection ID.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id ConnID) String() string    { return string(id) }

// IsValid reports whether s is a prefixed ULID with the given prefix.
func IsValid(s, prefix string) bool {
	raw, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}
