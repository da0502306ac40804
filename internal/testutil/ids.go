// Package testutil holds deterministic helpers shared by tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates prefix-1, prefix-2, ... as invocation IDs.
//
// Unlike engine.FixedGenerator it never runs out, and it can be reset so
// the same scenario runs twice with identical IDs.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. The first ID is prefix-1.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at prefix-1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
