package store

import (
	"context"
	"testing"
)

func TestPendingWriteOrderSurvivesReload(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"message-append:m1", "vehicle-update:veh-1", "notification-save:n1"} {
		if err := sqlStore.SavePendingWrite(ctx, PendingWriteRecord{
			ID:      id,
			Kind:    "message-append",
			Payload: []byte(`{"id":"` + id + `"}`),
		}); err != nil {
			t.Fatalf("save pending write %s: %v", id, err)
		}
	}

	records, err := sqlStore.ListPendingWrites(ctx)
	if err != nil {
		t.Fatalf("list pending writes: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 pending writes, got %d", len(records))
	}
	if records[0].ID != "message-append:m1" || records[2].ID != "notification-save:n1" {
		t.Fatalf("insertion order lost: %s .. %s", records[0].ID, records[2].ID)
	}
}

func TestPendingWriteUpdateKeepsPosition(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.SavePendingWrite(ctx, PendingWriteRecord{ID: "a", Kind: "vehicle-update", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := sqlStore.SavePendingWrite(ctx, PendingWriteRecord{ID: "b", Kind: "vehicle-update", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := sqlStore.SavePendingWrite(ctx, PendingWriteRecord{ID: "a", Kind: "vehicle-update", Payload: []byte(`{"v":2}`), Attempts: 3, LastError: "timeout"}); err != nil {
		t.Fatalf("update a: %v", err)
	}

	records, err := sqlStore.ListPendingWrites(ctx)
	if err != nil {
		t.Fatalf("list pending writes: %v", err)
	}
	if records[0].ID != "a" {
		t.Fatalf("expected a to keep its slot, got %s first", records[0].ID)
	}
	if records[0].Attempts != 3 || records[0].LastError != "timeout" {
		t.Fatalf("expected updated attempts/error, got %d %q", records[0].Attempts, records[0].LastError)
	}
	if string(records[0].Payload) != `{"v":2}` {
		t.Fatalf("expected replaced payload, got %s", records[0].Payload)
	}
}

func TestPendingWriteDelete(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.SavePendingWrite(ctx, PendingWriteRecord{ID: "gone", Kind: "conversation-save", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sqlStore.DeletePendingWrite(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err := sqlStore.ListPendingWrites(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty ledger table, got %d", len(records))
	}
}
