package history

import "github.com/gearhaus/market-runtime/internal/nav"

type stackEntry struct {
	record nav.Record
	path   string
}

// StackHost is the in-process history surface used by the terminal
// client. Push truncates any forward entries, mirroring how browser
// history behaves after navigating from a mid-stack position.
type StackHost struct {
	entries []stackEntry
	cursor  int
}

func NewStackHost() *StackHost {
	return &StackHost{cursor: -1}
}

func (h *StackHost) Push(record nav.Record, path string) {
	h.entries = h.entries[:h.cursor+1]
	h.entries = append(h.entries, stackEntry{record: record, path: path})
	h.cursor = len(h.entries) - 1
}

func (h *StackHost) Replace(record nav.Record, path string) {
	if h.cursor < 0 {
		h.Push(record, path)
		return
	}
	h.entries[h.cursor] = stackEntry{record: record, path: path}
}

func (h *StackHost) Back() (nav.Record, bool) {
	if h.cursor <= 0 {
		return nav.Record{}, false
	}
	h.cursor--
	return h.entries[h.cursor].record, true
}

func (h *StackHost) Forward() (nav.Record, bool) {
	if h.cursor < 0 || h.cursor >= len(h.entries)-1 {
		return nav.Record{}, false
	}
	h.cursor++
	return h.entries[h.cursor].record, true
}

// Depth reports how many entries sit behind the cursor.
func (h *StackHost) Depth() int {
	return h.cursor + 1
}
