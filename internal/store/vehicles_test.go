package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "market_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func TestVehicleUpsertAndLookup(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.UpsertVehicle(ctx, VehicleRecord{
		ID:         "veh-1",
		Title:      "2019 Honda Civic",
		Make:       "Honda",
		Model:      "Civic",
		Year:       2019,
		PriceCents: 1450000,
		SellerID:   "usr-seller",
	}); err != nil {
		t.Fatalf("upsert vehicle: %v", err)
	}

	loaded, err := sqlStore.LookupVehicle(ctx, "veh-1")
	if err != nil {
		t.Fatalf("lookup vehicle: %v", err)
	}
	if loaded.Title != "2019 Honda Civic" {
		t.Fatalf("unexpected title: %s", loaded.Title)
	}
	if loaded.Status != "listed" {
		t.Fatalf("expected default listed status, got %s", loaded.Status)
	}

	if err := sqlStore.UpsertVehicle(ctx, VehicleRecord{
		ID:         "veh-1",
		Title:      "2019 Honda Civic LX",
		PriceCents: 1400000,
		Status:     "reserved",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	loaded, err = sqlStore.LookupVehicle(ctx, "veh-1")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if loaded.Status != "reserved" || loaded.PriceCents != 1400000 {
		t.Fatalf("expected overwrite, got status=%s price=%d", loaded.Status, loaded.PriceCents)
	}
}

func TestLookupVehicleMissing(t *testing.T) {
	sqlStore := newTestStore(t)
	if _, err := sqlStore.LookupVehicle(context.Background(), "veh-none"); !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound, got %v", err)
	}
}

func TestApplyVehicleUpdates(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.UpsertVehicle(ctx, VehicleRecord{ID: "veh-2", Title: "2016 Ford Focus", PriceCents: 800000}); err != nil {
		t.Fatalf("upsert vehicle: %v", err)
	}
	if err := sqlStore.ApplyVehicleUpdates(ctx, "veh-2", map[string]any{
		"price_cents": 750000,
		"status":      "sold",
	}); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	loaded, err := sqlStore.LookupVehicle(ctx, "veh-2")
	if err != nil {
		t.Fatalf("lookup vehicle: %v", err)
	}
	if loaded.PriceCents != 750000 || loaded.Status != "sold" {
		t.Fatalf("expected applied updates, got price=%d status=%s", loaded.PriceCents, loaded.Status)
	}
	if loaded.Title != "2016 Ford Focus" {
		t.Fatalf("untouched field changed: %s", loaded.Title)
	}

	if err := sqlStore.ApplyVehicleUpdates(ctx, "veh-missing", map[string]any{"status": "sold"}); !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound for missing vehicle, got %v", err)
	}
}

func TestVehicleFAQs(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.UpsertVehicle(ctx, VehicleRecord{ID: "veh-3", Title: "2021 Kia Seltos"}); err != nil {
		t.Fatalf("upsert vehicle: %v", err)
	}
	if err := sqlStore.AddVehicleFAQ(ctx, VehicleFAQ{
		ID:        "faq-1",
		VehicleID: "veh-3",
		Question:  "Is the service history available?",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("add faq: %v", err)
	}
	faqs, err := sqlStore.ListVehicleFAQs(ctx, "veh-3")
	if err != nil {
		t.Fatalf("list faqs: %v", err)
	}
	if len(faqs) != 1 || faqs[0].Question != "Is the service history available?" {
		t.Fatalf("unexpected faqs: %+v", faqs)
	}
}
