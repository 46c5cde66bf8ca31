package syncq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gearhaus/market-runtime/internal/store"
)

// Persister mirrors the ledger into durable storage so queued writes
// survive a restart. Implemented by store.Store.
type Persister interface {
	SavePendingWrite(ctx context.Context, record store.PendingWriteRecord) error
	DeletePendingWrite(ctx context.Context, id string) error
	ListPendingWrites(ctx context.Context) ([]store.PendingWriteRecord, error)
}

// Ledger holds pending writes in arrival order. Enqueueing an id that
// is already present replaces its payload in place, keeping the
// original queue position, so the drain order stays stable across
// repeated edits of the same entity.
type Ledger struct {
	logger    *slog.Logger
	persister Persister

	mu    sync.Mutex
	order []string
	tasks map[string]Task

	now func() time.Time
}

func NewLedger(persister Persister, logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:    logger.With("component", "sync-ledger"),
		persister: persister,
		tasks:     make(map[string]Task),
		now:       time.Now,
	}
}

// Load restores persisted tasks into the ledger. Called once at
// startup before the worker begins draining.
func (l *Ledger) Load(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}
	records, err := l.persister.ListPendingWrites(ctx)
	if err != nil {
		return fmt.Errorf("load pending writes: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range records {
		task := Task{
			ID:        record.ID,
			Kind:      Kind(record.Kind),
			Payload:   record.Payload,
			Attempts:  record.Attempts,
			LastError: record.LastError,
			CreatedAt: record.CreatedAt,
		}
		if !task.Kind.Known() {
			l.logger.Warn("dropping persisted task with unknown kind", "id", task.ID, "kind", task.Kind)
			continue
		}
		if _, exists := l.tasks[task.ID]; !exists {
			l.order = append(l.order, task.ID)
		}
		l.tasks[task.ID] = task
	}
	if len(l.order) > 0 {
		l.logger.Info("recovered pending writes", "count", len(l.order))
	}
	return nil
}

// Enqueue validates and records a task. A task whose id is already
// queued keeps its position and attempt count but takes the newer
// payload.
func (l *Ledger) Enqueue(ctx context.Context, kind Kind, entityID string, payload []byte) (Task, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return Task{}, fmt.Errorf("entity id is required")
	}
	if err := ValidatePayload(kind, payload); err != nil {
		return Task{}, err
	}

	l.mu.Lock()
	task := Task{
		ID:        TaskID(kind, entityID),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: l.now().UTC(),
	}
	if existing, ok := l.tasks[task.ID]; ok {
		task.Attempts = existing.Attempts
		task.LastError = existing.LastError
		task.CreatedAt = existing.CreatedAt
	} else {
		l.order = append(l.order, task.ID)
	}
	l.tasks[task.ID] = task
	l.mu.Unlock()

	l.persist(ctx, task)
	return task, nil
}

// Remove deletes a task after a successful flush.
func (l *Ledger) Remove(ctx context.Context, id string) {
	l.mu.Lock()
	if _, ok := l.tasks[id]; ok {
		delete(l.tasks, id)
		for index, queued := range l.order {
			if queued == id {
				l.order = append(l.order[:index], l.order[index+1:]...)
				break
			}
		}
	}
	l.mu.Unlock()

	if l.persister != nil {
		if err := l.persister.DeletePendingWrite(ctx, id); err != nil {
			l.logger.Warn("delete persisted task", "id", id, "error", err)
		}
	}
}

// MarkFailed bumps the attempt count and records the failure reason,
// keeping the task queued at its current position. It returns the new
// attempt count.
func (l *Ledger) MarkFailed(ctx context.Context, id string, cause error) int {
	l.mu.Lock()
	task, ok := l.tasks[id]
	if !ok {
		l.mu.Unlock()
		return 0
	}
	task.Attempts++
	task.LastError = cause.Error()
	l.tasks[id] = task
	l.mu.Unlock()

	l.persist(ctx, task)
	return task.Attempts
}

// Snapshot returns the queued tasks in drain order.
func (l *Ledger) Snapshot() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Task, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.tasks[id])
	}
	return out
}

// Len reports how many tasks are queued.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Ledger) persist(ctx context.Context, task Task) {
	if l.persister == nil {
		return
	}
	record := store.PendingWriteRecord{
		ID:        task.ID,
		Kind:      string(task.Kind),
		Payload:   task.Payload,
		Attempts:  task.Attempts,
		LastError: task.LastError,
		CreatedAt: task.CreatedAt,
	}
	if err := l.persister.SavePendingWrite(ctx, record); err != nil {
		l.logger.Warn("persist pending task", "id", task.ID, "error", err)
	}
}
