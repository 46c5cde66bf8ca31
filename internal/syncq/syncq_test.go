package syncq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/gearhaus/market-runtime/internal/markerr"
	"github.com/gearhaus/market-runtime/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedWriter struct {
	responses map[string]error
	applied   []string
}

func (w *scriptedWriter) Apply(_ context.Context, task Task) error {
	w.applied = append(w.applied, task.ID)
	return w.responses[task.ID]
}

func vehiclePayload(id string) []byte {
	return []byte(fmt.Sprintf(`{"id": %q, "fields": {"price_cents": 1250000}}`, id))
}

func messagePayload(id, conversationID string) []byte {
	return []byte(fmt.Sprintf(`{"id": %q, "conversationId": %q, "senderId": "usr-1", "body": "still available?"}`, id, conversationID))
}

func enqueueVehicle(t *testing.T, ledger *Ledger, id string) Task {
	t.Helper()
	task, err := ledger.Enqueue(context.Background(), KindVehicleUpdate, id, vehiclePayload(id))
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
	return task
}

func TestEnqueueValidatesPayload(t *testing.T) {
	ledger := NewLedger(nil, testLogger())

	if _, err := ledger.Enqueue(context.Background(), KindVehicleUpdate, "veh-1", []byte(`{"id": "veh-1"}`)); err == nil {
		t.Fatal("expected payload without fields rejected")
	}
	if _, err := ledger.Enqueue(context.Background(), Kind("bulk-delete"), "veh-1", vehiclePayload("veh-1")); err == nil {
		t.Fatal("expected unknown kind rejected")
	}
	if _, err := ledger.Enqueue(context.Background(), KindMessageAppend, "msg-1", []byte(`{"id": "msg-1", "conversationId": "cnv-1", "senderId": "usr-1", "body": ""}`)); err == nil {
		t.Fatal("expected empty body rejected")
	}
	if ledger.Len() != 0 {
		t.Fatalf("rejected payloads must not enter the ledger, len=%d", ledger.Len())
	}
}

func TestEnqueueReplaceKeepsPosition(t *testing.T) {
	ledger := NewLedger(nil, testLogger())

	enqueueVehicle(t, ledger, "veh-1")
	enqueueVehicle(t, ledger, "veh-2")
	enqueueVehicle(t, ledger, "veh-1")

	snapshot := ledger.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected two tasks, got %d", len(snapshot))
	}
	if snapshot[0].ID != TaskID(KindVehicleUpdate, "veh-1") || snapshot[1].ID != TaskID(KindVehicleUpdate, "veh-2") {
		t.Fatalf("replace moved the task: %s, %s", snapshot[0].ID, snapshot[1].ID)
	}
}

func TestRunOnceKeepsFailedTasks(t *testing.T) {
	ledger := NewLedger(nil, testLogger())
	rejected := enqueueVehicle(t, ledger, "veh-2")
	enqueueVehicle(t, ledger, "veh-1")
	enqueueVehicle(t, ledger, "veh-3")

	writer := &scriptedWriter{responses: map[string]error{
		rejected.ID: fmt.Errorf("backend unavailable: %w", markerr.ErrTransient),
	}}
	worker := NewWorker(ledger, writer, time.Minute, 0, 0, nil, testLogger())

	report := worker.RunOnce(context.Background())
	if report.Succeeded != 2 || report.Failed != 1 || report.Evicted != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	remaining := ledger.Snapshot()
	if len(remaining) != 1 || remaining[0].ID != rejected.ID {
		t.Fatalf("expected only the rejected task left, got %+v", remaining)
	}
	if remaining[0].Attempts != 1 || remaining[0].LastError == "" {
		t.Fatalf("expected failure recorded: %+v", remaining[0])
	}

	// The backend recovers and the retry clears the queue.
	writer.responses = nil
	report = worker.RunOnce(context.Background())
	if report.Succeeded != 1 || ledger.Len() != 0 {
		t.Fatalf("expected retry to drain the queue, report=%+v len=%d", report, ledger.Len())
	}
}

func TestRunOncePausesOnExpiredSession(t *testing.T) {
	ledger := NewLedger(nil, testLogger())
	first := enqueueVehicle(t, ledger, "veh-1")
	enqueueVehicle(t, ledger, "veh-2")

	writer := &scriptedWriter{responses: map[string]error{
		first.ID: markerr.ErrAuthExpired,
	}}
	worker := NewWorker(ledger, writer, time.Minute, 0, 0, nil, testLogger())

	report := worker.RunOnce(context.Background())
	if !report.AuthExpired {
		t.Fatal("expected auth expiry surfaced")
	}
	if len(writer.applied) != 1 {
		t.Fatalf("expected drain to stop at the first task, applied %d", len(writer.applied))
	}
	if ledger.Len() != 2 {
		t.Fatalf("expected no tasks lost, len=%d", ledger.Len())
	}
	if ledger.Snapshot()[0].Attempts != 0 {
		t.Fatal("auth expiry must not count as an attempt")
	}
}

func TestRunOnceEvictsRejectedTasks(t *testing.T) {
	ledger := NewLedger(nil, testLogger())
	poison := enqueueVehicle(t, ledger, "veh-1")

	writer := &scriptedWriter{responses: map[string]error{
		poison.ID: fmt.Errorf("price out of range: %w", markerr.ErrValidation),
	}}
	worker := NewWorker(ledger, writer, time.Minute, 0, 0, nil, testLogger())

	report := worker.RunOnce(context.Background())
	if report.Evicted != 1 || ledger.Len() != 0 {
		t.Fatalf("expected poison task evicted, report=%+v len=%d", report, ledger.Len())
	}
}

func TestRetryCeilingEvicts(t *testing.T) {
	ledger := NewLedger(nil, testLogger())
	task := enqueueVehicle(t, ledger, "veh-1")

	writer := &scriptedWriter{responses: map[string]error{
		task.ID: markerr.ErrTransient,
	}}
	worker := NewWorker(ledger, writer, time.Minute, 0, 2, nil, testLogger())

	report := worker.RunOnce(context.Background())
	if report.Failed != 1 || report.Evicted != 0 {
		t.Fatalf("first pass: %+v", report)
	}
	report = worker.RunOnce(context.Background())
	if report.Evicted != 1 || ledger.Len() != 0 {
		t.Fatalf("expected eviction at the ceiling, report=%+v len=%d", report, ledger.Len())
	}
}

func TestLedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runtime.db")

	persisted, err := store.New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer persisted.Close()
	if err := persisted.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger := NewLedger(persisted, testLogger())
	enqueueVehicle(t, ledger, "veh-1")
	if _, err := ledger.Enqueue(ctx, KindMessageAppend, "msg-1", messagePayload("msg-1", "cnv-1")); err != nil {
		t.Fatalf("enqueue message: %v", err)
	}
	ledger.MarkFailed(ctx, TaskID(KindVehicleUpdate, "veh-1"), errors.New("timeout"))

	reloaded := NewLedger(persisted, testLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	tasks := reloaded.Snapshot()
	if len(tasks) != 2 {
		t.Fatalf("expected two recovered tasks, got %d", len(tasks))
	}
	if tasks[0].ID != TaskID(KindVehicleUpdate, "veh-1") {
		t.Fatalf("expected recovery in insertion order, got %s first", tasks[0].ID)
	}
	if tasks[0].Attempts != 1 || tasks[0].LastError != "timeout" {
		t.Fatalf("expected failure state recovered: %+v", tasks[0])
	}

	reloaded.Remove(ctx, tasks[0].ID)
	again := NewLedger(persisted, testLogger())
	if err := again.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Len() != 1 {
		t.Fatalf("expected removal persisted, len=%d", again.Len())
	}
}

func TestStartFlushesPendingShortlyAfterStart(t *testing.T) {
	ledger := NewLedger(nil, testLogger())
	enqueueVehicle(t, ledger, "veh-1")

	writer := &scriptedWriter{responses: map[string]error{}}
	worker := NewWorker(ledger, writer, time.Hour, 0, 0, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ledger.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pending task not flushed shortly after start, len=%d", ledger.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("worker stopped with %v", err)
	}
}
