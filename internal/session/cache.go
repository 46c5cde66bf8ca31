// Package session holds the snapshot of the vehicle currently open in
// the detail view. The snapshot lives in its own session file, separate
// from application state, so a reload or a race between a state update
// and a guard redirect cannot lose it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// VehicleSnapshot is a denormalized copy of the selected vehicle. It is
// intentionally self-contained: rendering a detail view after a reload
// must not require a round trip to the store or the backend.
type VehicleSnapshot struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Make        string    `json:"make,omitempty"`
	Model       string    `json:"model,omitempty"`
	Year        int       `json:"year,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	SellerID    string    `json:"seller_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Description string    `json:"description,omitempty"`
	City        string    `json:"city,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

type Cache struct {
	path   string
	logger *slog.Logger

	mu            sync.Mutex
	corruptionMsg bool
}

func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{path: strings.TrimSpace(path), logger: logger}
}

// Load reads the snapshot synchronously. A missing file is a normal
// empty result; an unparseable file is discarded, logged once, and
// treated as empty.
func (c *Cache) Load() (VehicleSnapshot, bool) {
	content, err := os.ReadFile(c.path)
	if err != nil {
		return VehicleSnapshot{}, false
	}
	var snapshot VehicleSnapshot
	if err := json.Unmarshal(content, &snapshot); err != nil || strings.TrimSpace(snapshot.ID) == "" {
		c.discardCorrupted(err)
		return VehicleSnapshot{}, false
	}
	return snapshot, true
}

func (c *Cache) Save(snapshot VehicleSnapshot) error {
	if strings.TrimSpace(snapshot.ID) == "" {
		return errors.New("snapshot vehicle id is required")
	}
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}
	content, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode selection snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(c.path, content, 0o644); err != nil {
		return fmt.Errorf("write selection snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot. Clearing an already empty cache is fine.
func (c *Cache) Clear() {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("clear selection snapshot failed", "path", c.path, "error", err)
	}
}

func (c *Cache) discardCorrupted(cause error) {
	c.mu.Lock()
	alreadyLogged := c.corruptionMsg
	c.corruptionMsg = true
	c.mu.Unlock()

	_ = os.Remove(c.path)
	if !alreadyLogged {
		c.logger.Warn("discarded corrupted selection snapshot", "path", c.path, "error", cause)
	}
}
