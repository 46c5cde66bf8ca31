package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrUserNotFound = errors.New("user not found")

const currentUserKey = "current_user_id"

type UserRecord struct {
	ID          string
	DisplayName string
	Email       string
	Role        string
}

func (s *Store) UpsertUser(ctx context.Context, record UserRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return ErrUserNotFound
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, email, role) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			role = excluded.role`,
		id,
		strings.TrimSpace(record.DisplayName),
		nullIfEmpty(record.Email),
		strings.ToLower(strings.TrimSpace(record.Role)),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// SetCurrentUser records which stored user is signed in. An empty id
// signs out.
func (s *Store) SetCurrentUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, currentUserKey); err != nil {
			return fmt.Errorf("clear current user: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		currentUserKey,
		id,
	)
	if err != nil {
		return fmt.Errorf("set current user: %w", err)
	}
	return nil
}

func (s *Store) CurrentUser(ctx context.Context) (UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, currentUserKey)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("scan current user pointer: %w", err)
	}
	return s.LookupUser(ctx, id)
}

func (s *Store) LookupUser(ctx context.Context, id string) (UserRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, display_name, COALESCE(email, ''), role FROM users WHERE id = ?`,
		strings.TrimSpace(id),
	)
	var record UserRecord
	err := row.Scan(&record.ID, &record.DisplayName, &record.Email, &record.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("scan user: %w", err)
	}
	return record, nil
}
