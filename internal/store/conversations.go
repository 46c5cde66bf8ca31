package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRecord struct {
	ID              string
	VehicleID       string
	BuyerID         string
	SellerID        string
	LastMessageText string
	UpdatedAt       time.Time
}

type MessageRecord struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	Delivered      bool
	CreatedAt      time.Time
}

func (s *Store) UpsertConversation(ctx context.Context, record ConversationRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return ErrConversationNotFound
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversations (id, vehicle_id, buyer_id, seller_id, last_message_text, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id = excluded.vehicle_id,
			buyer_id = excluded.buyer_id,
			seller_id = excluded.seller_id,
			last_message_text = excluded.last_message_text,
			updated_at_unix = excluded.updated_at_unix`,
		id,
		nullIfEmpty(record.VehicleID),
		nullIfEmpty(record.BuyerID),
		nullIfEmpty(record.SellerID),
		nullIfEmpty(record.LastMessageText),
		updatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (s *Store) LookupConversation(ctx context.Context, id string) (ConversationRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, COALESCE(vehicle_id, ''), COALESCE(buyer_id, ''), COALESCE(seller_id, ''),
			COALESCE(last_message_text, ''), COALESCE(updated_at_unix, 0)
		FROM conversations WHERE id = ?`,
		strings.TrimSpace(id),
	)
	var record ConversationRecord
	var updatedAtUnix int64
	err := row.Scan(&record.ID, &record.VehicleID, &record.BuyerID, &record.SellerID, &record.LastMessageText, &updatedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return ConversationRecord{}, ErrConversationNotFound
	}
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("scan conversation: %w", err)
	}
	if updatedAtUnix > 0 {
		record.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	}
	return record, nil
}

func (s *Store) ListConversations(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, COALESCE(vehicle_id, ''), COALESCE(buyer_id, ''), COALESCE(seller_id, ''),
			COALESCE(last_message_text, ''), COALESCE(updated_at_unix, 0)
		FROM conversations ORDER BY updated_at_unix DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	records := []ConversationRecord{}
	for rows.Next() {
		var record ConversationRecord
		var updatedAtUnix int64
		if err := rows.Scan(&record.ID, &record.VehicleID, &record.BuyerID, &record.SellerID, &record.LastMessageText, &updatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if updatedAtUnix > 0 {
			record.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// AppendMessage writes the optimistic local copy of an outbound message
// and bumps the conversation preview in one transaction.
func (s *Store) AppendMessage(ctx context.Context, message MessageRecord) error {
	if strings.TrimSpace(message.ID) == "" || strings.TrimSpace(message.ConversationID) == "" {
		return ErrConversationNotFound
	}
	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, body, delivered, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET delivered = excluded.delivered`,
		strings.TrimSpace(message.ID),
		strings.TrimSpace(message.ConversationID),
		strings.TrimSpace(message.SenderID),
		message.Body,
		boolToInt(message.Delivered),
		createdAt.UTC().Unix(),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE conversations SET last_message_text = ?, updated_at_unix = ? WHERE id = ?`,
		message.Body,
		createdAt.UTC().Unix(),
		strings.TrimSpace(message.ConversationID),
	); err != nil {
		return fmt.Errorf("update conversation preview: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append message: %w", err)
	}
	return nil
}

func (s *Store) MarkMessageDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET delivered = 1 WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("mark message delivered: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]MessageRecord, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, conversation_id, sender_id, body, delivered, created_at_unix
		FROM messages WHERE conversation_id = ? ORDER BY created_at_unix ASC LIMIT ?`,
		strings.TrimSpace(conversationID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	records := []MessageRecord{}
	for rows.Next() {
		var record MessageRecord
		var delivered int
		var createdAtUnix int64
		if err := rows.Scan(&record.ID, &record.ConversationID, &record.SenderID, &record.Body, &delivered, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.Delivered = delivered != 0
		record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
