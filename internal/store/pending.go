package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PendingWriteRecord mirrors one sync queue task on disk so queued
// writes survive a full restart. Insertion order is preserved by rowid.
type PendingWriteRecord struct {
	ID        string
	Kind      string
	Payload   []byte
	Attempts  int
	LastError string
	CreatedAt time.Time
}

func (s *Store) SavePendingWrite(ctx context.Context, record PendingWriteRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return fmt.Errorf("pending write id is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pending_writes (id, kind, payload, attempts, last_error, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			attempts = excluded.attempts,
			last_error = excluded.last_error`,
		id,
		strings.TrimSpace(record.Kind),
		string(record.Payload),
		record.Attempts,
		nullIfEmpty(record.LastError),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save pending write: %w", err)
	}
	return nil
}

func (s *Store) DeletePendingWrite(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete pending write: %w", err)
	}
	return nil
}

// ListPendingWrites returns queued writes in insertion order.
func (s *Store) ListPendingWrites(ctx context.Context) ([]PendingWriteRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, payload, attempts, COALESCE(last_error, ''), created_at_unix
		FROM pending_writes ORDER BY rowid ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending writes: %w", err)
	}
	defer rows.Close()

	records := []PendingWriteRecord{}
	for rows.Next() {
		var record PendingWriteRecord
		var payload string
		var createdAtUnix int64
		if err := rows.Scan(&record.ID, &record.Kind, &payload, &record.Attempts, &record.LastError, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		record.Payload = []byte(payload)
		record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}
