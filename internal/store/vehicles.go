package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

type VehicleRecord struct {
	ID          string
	Title       string
	Make        string
	Model       string
	Year        int
	PriceCents  int64
	SellerID    string
	Status      string
	Description string
	MileageKM   int64
	City        string
	UpdatedAt   time.Time
}

type VehicleFAQ struct {
	ID        string
	VehicleID string
	Question  string
	Answer    string
	CreatedAt time.Time
}

func (s *Store) UpsertVehicle(ctx context.Context, record VehicleRecord) error {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return ErrVehicleNotFound
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO vehicles (id, title, make, model, year, price_cents, seller_id, status, description, mileage_km, city, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			make = excluded.make,
			model = excluded.model,
			year = excluded.year,
			price_cents = excluded.price_cents,
			seller_id = excluded.seller_id,
			status = excluded.status,
			description = excluded.description,
			mileage_km = excluded.mileage_km,
			city = excluded.city,
			updated_at_unix = excluded.updated_at_unix`,
		id,
		strings.TrimSpace(record.Title),
		nullIfEmpty(record.Make),
		nullIfEmpty(record.Model),
		record.Year,
		record.PriceCents,
		nullIfEmpty(record.SellerID),
		statusOrListed(record.Status),
		nullIfEmpty(record.Description),
		nullIfZeroInt64(record.MileageKM),
		nullIfEmpty(record.City),
		updatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert vehicle: %w", err)
	}
	return nil
}

func (s *Store) LookupVehicle(ctx context.Context, id string) (VehicleRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return VehicleRecord{}, ErrVehicleNotFound
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, title, COALESCE(make, ''), COALESCE(model, ''), COALESCE(year, 0),
			price_cents, COALESCE(seller_id, ''), status, COALESCE(description, ''),
			COALESCE(mileage_km, 0), COALESCE(city, ''), COALESCE(updated_at_unix, 0)
		FROM vehicles WHERE id = ?`,
		id,
	)
	return scanVehicle(row)
}

func (s *Store) ListVehicles(ctx context.Context, limit int) ([]VehicleRecord, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, COALESCE(make, ''), COALESCE(model, ''), COALESCE(year, 0),
			price_cents, COALESCE(seller_id, ''), status, COALESCE(description, ''),
			COALESCE(mileage_km, 0), COALESCE(city, ''), COALESCE(updated_at_unix, 0)
		FROM vehicles ORDER BY updated_at_unix DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	records := []VehicleRecord{}
	for rows.Next() {
		record, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ApplyVehicleUpdates overwrites the given fields on the local copy.
// Missing vehicle is an error so optimistic updates cannot create
// phantom rows.
func (s *Store) ApplyVehicleUpdates(ctx context.Context, id string, updates map[string]any) error {
	record, err := s.LookupVehicle(ctx, id)
	if err != nil {
		return err
	}
	for field, value := range updates {
		switch field {
		case "title":
			record.Title = fmt.Sprint(value)
		case "status":
			record.Status = fmt.Sprint(value)
		case "description":
			record.Description = fmt.Sprint(value)
		case "city":
			record.City = fmt.Sprint(value)
		case "price_cents":
			record.PriceCents = toInt64(value)
		case "mileage_km":
			record.MileageKM = toInt64(value)
		case "year":
			record.Year = int(toInt64(value))
		}
	}
	record.UpdatedAt = time.Now().UTC()
	return s.UpsertVehicle(ctx, record)
}

func (s *Store) AddVehicleFAQ(ctx context.Context, faq VehicleFAQ) error {
	if strings.TrimSpace(faq.ID) == "" || strings.TrimSpace(faq.VehicleID) == "" {
		return ErrVehicleNotFound
	}
	createdAt := faq.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO vehicle_faqs (id, vehicle_id, question, answer, created_at_unix) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(faq.ID),
		strings.TrimSpace(faq.VehicleID),
		strings.TrimSpace(faq.Question),
		nullIfEmpty(faq.Answer),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert vehicle faq: %w", err)
	}
	return nil
}

func (s *Store) ListVehicleFAQs(ctx context.Context, vehicleID string) ([]VehicleFAQ, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, vehicle_id, question, COALESCE(answer, ''), created_at_unix
		FROM vehicle_faqs WHERE vehicle_id = ? ORDER BY created_at_unix ASC`,
		strings.TrimSpace(vehicleID),
	)
	if err != nil {
		return nil, fmt.Errorf("list vehicle faqs: %w", err)
	}
	defer rows.Close()

	faqs := []VehicleFAQ{}
	for rows.Next() {
		var faq VehicleFAQ
		var createdAtUnix int64
		if err := rows.Scan(&faq.ID, &faq.VehicleID, &faq.Question, &faq.Answer, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan vehicle faq: %w", err)
		}
		faq.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		faqs = append(faqs, faq)
	}
	return faqs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (VehicleRecord, error) {
	var record VehicleRecord
	var updatedAtUnix int64
	err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Make,
		&record.Model,
		&record.Year,
		&record.PriceCents,
		&record.SellerID,
		&record.Status,
		&record.Description,
		&record.MileageKM,
		&record.City,
		&updatedAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return VehicleRecord{}, ErrVehicleNotFound
	}
	if err != nil {
		return VehicleRecord{}, fmt.Errorf("scan vehicle: %w", err)
	}
	if updatedAtUnix > 0 {
		record.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	}
	return record, nil
}

func statusOrListed(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "listed"
	}
	return status
}

func toInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	default:
		return 0
	}
}
