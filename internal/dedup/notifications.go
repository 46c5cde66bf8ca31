package dedup

import (
	"strings"
	"sync"
)

// At most this many notification ids are remembered as shown. The
// oldest entries fall off first during Prune.
const shownCap = 100

// ShownTracker remembers which notification ids have already been
// surfaced to the user, so a refresh never re-alerts for the same
// notification. Insertion order is kept so pruning can drop the
// oldest entries.
type ShownTracker struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func NewShownTracker() *ShownTracker {
	return &ShownTracker{seen: make(map[string]struct{})}
}

// MarkIfUnshown records the id and reports whether an alert should
// fire. Foreground arrivals are marked but never alerted, since the
// user is already looking at the surface that renders them.
func (t *ShownTracker) MarkIfUnshown(id string, foreground bool) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = struct{}{}
	t.order = append(t.order, id)
	return !foreground
}

// Shown reports whether the id has already been surfaced.
func (t *ShownTracker) Shown(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// Prune drops ids no longer present in the live set, then trims the
// remainder to the cap, oldest first.
func (t *ShownTracker) Prune(liveIDs []string) {
	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	for _, id := range t.order {
		if _, ok := live[id]; ok {
			kept = append(kept, id)
		} else {
			delete(t.seen, id)
		}
	}
	t.order = kept

	for len(t.order) > shownCap {
		delete(t.seen, t.order[0])
		t.order = t.order[1:]
	}
}
