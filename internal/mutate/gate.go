// Package mutate serializes per-entity mutations. A second mutation
// for an entity that already has one in flight is dropped instead of
// queued, which keeps double-submits from racing each other.
package mutate

import (
	"log/slog"
	"strings"
	"sync"
)

type Gate struct {
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGate(logger *slog.Logger) *Gate {
	return &Gate{
		logger:   logger.With("component", "mutation-gate"),
		inFlight: make(map[string]struct{}),
	}
}

// Do runs fn if no mutation for id is in flight, releasing the slot
// when fn returns on any path. It reports whether fn ran.
func (g *Gate) Do(id string, fn func() error) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	g.mu.Lock()
	if _, busy := g.inFlight[id]; busy {
		g.mu.Unlock()
		g.logger.Debug("mutation dropped, entity already in flight", "entity", id)
		return false, nil
	}
	g.inFlight[id] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, id)
		g.mu.Unlock()
	}()

	return true, fn()
}

// Busy reports whether a mutation for id is currently in flight.
func (g *Gate) Busy(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[strings.TrimSpace(id)]
	return busy
}
