package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRecord struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}

func (s *Store) UpsertNotification(ctx context.Context, record NotificationRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return ErrNotificationNotFound
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO notifications (id, user_id, kind, title, body, read, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			body = excluded.body,
			read = excluded.read`,
		id,
		nullIfEmpty(record.UserID),
		strings.TrimSpace(record.Kind),
		strings.TrimSpace(record.Title),
		nullIfEmpty(record.Body),
		boolToInt(record.Read),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]NotificationRecord, error) {
	if limit < 1 {
		limit = 100
	}
	query := `SELECT id, COALESCE(user_id, ''), kind, title, COALESCE(body, ''), read, created_at_unix
		FROM notifications`
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY created_at_unix DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	records := []NotificationRecord{}
	for rows.Next() {
		var record NotificationRecord
		var read int
		var createdAtUnix int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.Kind, &record.Title, &record.Body, &read, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		record.Read = read != 0
		record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) LookupNotification(ctx context.Context, id string) (NotificationRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, COALESCE(user_id, ''), kind, title, COALESCE(body, ''), read, created_at_unix
		FROM notifications WHERE id = ?`,
		strings.TrimSpace(id),
	)
	var record NotificationRecord
	var read int
	var createdAtUnix int64
	err := row.Scan(&record.ID, &record.UserID, &record.Kind, &record.Title, &record.Body, &read, &createdAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationRecord{}, ErrNotificationNotFound
	}
	if err != nil {
		return NotificationRecord{}, fmt.Errorf("scan notification: %w", err)
	}
	record.Read = read != 0
	record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return record, nil
}
