// Package guard serializes lifecycle operations within one client instance.
//
// Operations that consume single-use server state (a refresh-token exchange,
// a login persisting a credential pair) must never interleave: the second of
// two overlapping exchanges would present an already-consumed token and be
// rejected. The guard admits at most one in-flight operation per family and
// rejects the rest immediately rather than queueing them.
package guard

import "sync"

// Guard tracks in-flight operation families. The zero value is not usable;
// call New.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]bool
}

// New returns an empty Guard.
func New() *Guard {
	return &Guard{inflight: map[string]bool{}}
}

// Acquire reserves the family. It reports false when an operation of the
// same family is already in flight.
func (g *Guard) Acquire(family string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight[family] {
		return false
	}
	g.inflight[family] = true
	return true
}

// Release frees the family. Releasing an unheld family is a no-op.
func (g *Guard) Release(family string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inflight, family)
}

// Held reports whether the family currently has an operation in flight.
func (g *Guard) Held(family string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inflight[family]
}
