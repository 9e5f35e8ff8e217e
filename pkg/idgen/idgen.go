// Package idgen generates globally unique, roughly time-ordered string IDs.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces sortable IDs. Implementations must be safe for
// concurrent use.
type Generator interface {
	NextID() (string, error)
}

// ULID is a ULID-based Generator with cryptographic entropy.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a ULID generator.
func New() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NextID returns a new lexicographically sortable ID.
func (g *ULID) NextID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
