// Package history bridges the navigation state machine to a host
// history surface. The host owns the entry stack; the bridge writes
// records into it on navigation and replays them back into the state
// machine when the host delivers a back or forward event.
package history

import (
	"log/slog"
	"strings"

	"github.com/gearhaus/market-runtime/internal/nav"
	"github.com/gearhaus/market-runtime/internal/session"
)

// Host is the surface the runtime records navigation into. Implemented
// by StackHost for the terminal client and by test doubles.
type Host interface {
	Push(record nav.Record, path string)
	Replace(record nav.Record, path string)
	Back() (nav.Record, bool)
	Forward() (nav.Record, bool)
}

// Restorer is the slice of the navigation state the bridge drives
// during back/forward replay.
type Restorer interface {
	Restore(record nav.Record, lookup func(id string) (session.VehicleSnapshot, bool))
	Navigate(view nav.View, params nav.Params) (nav.Result, error)
}

// Lookup resolves a vehicle id against the in-memory collection that
// is currently rendered. Storage is never consulted on restore.
type Lookup func(id string) (session.VehicleSnapshot, bool)

type Bridge struct {
	host   Host
	state  Restorer
	lookup Lookup
	logger *slog.Logger
}

func NewBridge(host Host, state Restorer, lookup Lookup, logger *slog.Logger) *Bridge {
	return &Bridge{
		host:   host,
		state:  state,
		lookup: lookup,
		logger: logger.With("component", "history"),
	}
}

// Push implements nav.Recorder. Records pass through untouched so a
// later restore sees exactly what navigation committed.
func (b *Bridge) Push(record nav.Record, path string) {
	b.host.Push(record, path)
}

// Back pops the host stack and replays the entry into the state
// machine. With nothing left to pop it navigates to fallback instead,
// so the back key always does something visible.
func (b *Bridge) Back(fallback nav.View) {
	record, ok := b.host.Back()
	if !ok {
		target := fallback
		if strings.TrimSpace(string(target)) == "" {
			target = nav.ViewHome
		}
		if _, err := b.state.Navigate(target, nav.Params{}); err != nil {
			b.logger.Warn("back fallback navigation failed", "view", target, "error", err)
		}
		return
	}
	b.state.Restore(record, b.lookup)
}

// Forward replays the next host entry, if any.
func (b *Bridge) Forward() {
	record, ok := b.host.Forward()
	if !ok {
		return
	}
	b.state.Restore(record, b.lookup)
}
