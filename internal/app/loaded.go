package app

import (
	"sort"
	"sync"
	"time"

	"github.com/gearhaus/market-runtime/internal/session"
	"github.com/gearhaus/market-runtime/internal/store"
)

// loadedSet is the in-memory catalog currently rendered by the
// client. History restores resolve selected vehicles against this
// set only, never against storage.
type loadedSet struct {
	mu       sync.RWMutex
	vehicles map[string]session.VehicleSnapshot
}

func newLoadedSet() *loadedSet {
	return &loadedSet{vehicles: make(map[string]session.VehicleSnapshot)}
}

func (l *loadedSet) put(record store.VehicleRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vehicles[record.ID] = session.VehicleSnapshot{
		ID:          record.ID,
		Title:       record.Title,
		Make:        record.Make,
		Model:       record.Model,
		Year:        record.Year,
		PriceCents:  record.PriceCents,
		SellerID:    record.SellerID,
		Status:      record.Status,
		Description: record.Description,
		City:        record.City,
		SavedAt:     time.Now().UTC(),
	}
}

func (l *loadedSet) get(id string) (session.VehicleSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snapshot, ok := l.vehicles[id]
	return snapshot, ok
}

func (l *loadedSet) list() []session.VehicleSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]session.VehicleSnapshot, 0, len(l.vehicles))
	for _, snapshot := range l.vehicles {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Title < out[b].Title })
	return out
}

// LoadedVehicle resolves a vehicle against the in-memory catalog.
func (o *Orchestrator) LoadedVehicle(id string) (session.VehicleSnapshot, bool) {
	return o.loaded.get(id)
}

// LoadedVehicles lists the in-memory catalog, sorted by title.
func (o *Orchestrator) LoadedVehicles() []session.VehicleSnapshot {
	return o.loaded.list()
}
