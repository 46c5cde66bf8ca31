package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/markerr"
	"github.com/gearhaus/market-runtime/internal/mutate"
	"github.com/gearhaus/market-runtime/internal/remote"
	"github.com/gearhaus/market-runtime/internal/signals"
	"github.com/gearhaus/market-runtime/internal/store"
	"github.com/gearhaus/market-runtime/internal/syncq"
)

type fakeBackend struct {
	appendErr       error
	updateErr       error
	notificationErr error
	conversationErr error
	vehicles        []remote.Vehicle
	listErr         error
	notifications   []remote.Notification
	onListVehicles  func()

	appended []remote.Message
	updated  []string
}

func (f *fakeBackend) AppendMessage(_ context.Context, message remote.Message) error {
	f.appended = append(f.appended, message)
	return f.appendErr
}

func (f *fakeBackend) SaveConversation(context.Context, remote.Conversation) error {
	return f.conversationErr
}

func (f *fakeBackend) SaveNotification(context.Context, remote.Notification) error {
	return f.notificationErr
}

func (f *fakeBackend) UpdateVehicle(_ context.Context, vehicleID string, _ map[string]any) error {
	f.updated = append(f.updated, vehicleID)
	return f.updateErr
}

func (f *fakeBackend) ListVehicles(context.Context, string, int) ([]remote.Vehicle, error) {
	if f.onListVehicles != nil {
		f.onListVehicles()
	}
	return f.vehicles, f.listErr
}

func (f *fakeBackend) ListNotifications(context.Context, string, bool) ([]remote.Notification, error) {
	return f.notifications, nil
}

type fakeKicker struct {
	kicks int
}

func (f *fakeKicker) Kick() { f.kicks++ }

type testHarness struct {
	orchestrator *Orchestrator
	store        *store.Store
	ledger       *syncq.Ledger
	backend      *fakeBackend
	kicker       *fakeKicker
	toasts       *dedup.ToastCenter
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	persisted, err := store.New(filepath.Join(t.TempDir(), "runtime.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { persisted.Close() })
	if err := persisted.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	backend := &fakeBackend{}
	kicker := &fakeKicker{}
	toasts := dedup.NewToastCenter(logger)
	ledger := syncq.NewLedger(persisted, logger)
	orchestrator := NewOrchestrator(
		persisted,
		ledger,
		kicker,
		backend,
		toasts,
		dedup.NewShownTracker(),
		mutate.NewGate(logger),
		signals.NewBus(logger),
		time.Second,
		logger,
	)
	return &testHarness{
		orchestrator: orchestrator,
		store:        persisted,
		ledger:       ledger,
		backend:      backend,
		kicker:       kicker,
		toasts:       toasts,
	}
}

func hasToast(toasts []dedup.Toast, kind dedup.ToastKind) bool {
	for _, toast := range toasts {
		if toast.Kind == kind {
			return true
		}
	}
	return false
}

func TestSendMessageQueuesWhenOffline(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()
	harness.backend.appendErr = fmt.Errorf("dial tcp: %w", markerr.ErrTransient)

	if err := harness.store.UpsertConversation(ctx, store.ConversationRecord{
		ID: "cnv-1", VehicleID: "veh-1", BuyerID: "usr-1", SellerID: "usr-2",
	}); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	message, err := harness.orchestrator.SendMessage(ctx, "cnv-1", "usr-1", "still available?")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if message.Delivered {
		t.Fatal("offline message must not be marked delivered")
	}

	stored, err := harness.store.ListMessages(ctx, "cnv-1", 0)
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected optimistic local copy, got %d err=%v", len(stored), err)
	}
	if harness.ledger.Len() != 1 {
		t.Fatalf("expected one queued task, got %d", harness.ledger.Len())
	}
	task := harness.ledger.Snapshot()[0]
	if task.Kind != syncq.KindMessageAppend {
		t.Fatalf("unexpected task kind %s", task.Kind)
	}
	if harness.kicker.kicks != 1 {
		t.Fatalf("expected eager sync kick, got %d", harness.kicker.kicks)
	}
}

func TestSendMessageMarksDeliveredOnline(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()

	if err := harness.store.UpsertConversation(ctx, store.ConversationRecord{
		ID: "cnv-1", VehicleID: "veh-1", BuyerID: "usr-1", SellerID: "usr-2",
	}); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	message, err := harness.orchestrator.SendMessage(ctx, "cnv-1", "usr-1", "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !message.Delivered {
		t.Fatal("expected delivered message")
	}
	if harness.ledger.Len() != 0 {
		t.Fatalf("expected nothing queued, got %d", harness.ledger.Len())
	}
}

func TestUpdateVehicleAuthExpiredToastsOnce(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()
	harness.backend.updateErr = markerr.ErrAuthExpired

	seedVehicle(t, harness.store, "veh-1")
	seedVehicle(t, harness.store, "veh-2")

	if err := harness.orchestrator.UpdateVehicle(ctx, "veh-1", map[string]any{"status": "sold"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := harness.orchestrator.UpdateVehicle(ctx, "veh-2", map[string]any{"status": "sold"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	active := harness.toasts.Active()
	if len(active) != 1 || active[0].Kind != dedup.ToastError {
		t.Fatalf("expected a single auth toast, got %+v", active)
	}
	if harness.ledger.Len() != 0 {
		t.Fatal("auth failures must not enter the sync queue")
	}

	// The local edit survives even though sync was refused.
	vehicle, err := harness.store.LookupVehicle(ctx, "veh-1")
	if err != nil || vehicle.Status != "sold" {
		t.Fatalf("expected local edit kept, got %+v err=%v", vehicle, err)
	}
}

func TestUpdateVehicleValidationRejected(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()
	harness.backend.updateErr = fmt.Errorf("bad price: %w", markerr.ErrValidation)

	seedVehicle(t, harness.store, "veh-1")
	if err := harness.orchestrator.UpdateVehicle(ctx, "veh-1", map[string]any{"price_cents": -5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if harness.ledger.Len() != 0 {
		t.Fatal("rejected writes must not be queued")
	}
	if !hasToast(harness.toasts.Active(), dedup.ToastError) {
		t.Fatal("expected an error toast")
	}
}

func TestRefreshDiscardsStaleResults(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()

	harness.backend.vehicles = []remote.Vehicle{{ID: "veh-old", Title: "Old Result"}}
	// A newer refresh starts while this one is waiting on the wire.
	harness.backend.onListVehicles = func() {
		harness.orchestrator.refreshSeq.Add(1)
	}

	if err := harness.orchestrator.Refresh(ctx, "", true); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, ok := harness.orchestrator.LoadedVehicle("veh-old"); ok {
		t.Fatal("stale refresh results must be discarded")
	}
}

func TestRefreshPopulatesCatalog(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()

	harness.backend.vehicles = []remote.Vehicle{
		{ID: "veh-1", Title: "2019 Honda Civic", City: "Lyon"},
		{ID: "veh-2", Title: "2016 Ford Focus", City: "Lyon"},
	}
	if err := harness.orchestrator.Refresh(ctx, "Lyon", true); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if len(harness.orchestrator.LoadedVehicles()) != 2 {
		t.Fatalf("expected two loaded vehicles, got %d", len(harness.orchestrator.LoadedVehicles()))
	}
	stored, err := harness.store.ListVehicles(ctx, 0)
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected vehicles persisted, got %d err=%v", len(stored), err)
	}
	if harness.orchestrator.Loading() {
		t.Fatal("loading flag must clear after refresh")
	}
}

func TestRefreshToleratesOffline(t *testing.T) {
	harness := newTestHarness(t)
	harness.backend.listErr = fmt.Errorf("no route to host: %w", markerr.ErrTransient)

	if err := harness.orchestrator.Refresh(context.Background(), "", true); err != nil {
		t.Fatalf("offline refresh must not error: %v", err)
	}
}

func TestHandleNotificationAlertsOnce(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()

	notification := store.NotificationRecord{ID: "ntf-1", UserID: "usr-1", Title: "price drop"}
	if err := harness.orchestrator.HandleNotification(ctx, notification, false); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !hasToast(harness.toasts.Active(), dedup.ToastInfo) {
		t.Fatal("expected background notification to toast")
	}

	before := len(harness.toasts.Active())
	if err := harness.orchestrator.HandleNotification(ctx, notification, false); err != nil {
		t.Fatalf("repeat handle: %v", err)
	}
	if len(harness.toasts.Active()) != before {
		t.Fatal("repeat arrival must not toast again")
	}

	foreground := store.NotificationRecord{ID: "ntf-2", UserID: "usr-1", Title: "new message"}
	if err := harness.orchestrator.HandleNotification(ctx, foreground, true); err != nil {
		t.Fatalf("foreground handle: %v", err)
	}
	if len(harness.toasts.Active()) != before {
		t.Fatal("foreground arrival must not toast")
	}
}

func TestImportInventoryFile(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "batch.json")
	content := `{"vehicles": [
		{"id": "veh-1", "title": "2019 Honda Civic", "price_cents": 1450000, "city": "Lyon"},
		{"id": "", "title": "missing id"},
		{"id": "veh-2", "title": "2016 Ford Focus", "price_cents": 820000}
	]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}

	if err := harness.orchestrator.ImportInventoryFile(ctx, path); err != nil {
		t.Fatalf("import: %v", err)
	}
	stored, err := harness.store.ListVehicles(ctx, 0)
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected two imported vehicles, got %d err=%v", len(stored), err)
	}
	if _, ok := harness.orchestrator.LoadedVehicle("veh-1"); !ok {
		t.Fatal("expected imported vehicle in the loaded set")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}
	if err := harness.orchestrator.ImportInventoryFile(ctx, bad); err == nil {
		t.Fatal("expected malformed file to error")
	}
}

func TestHandleSyncReportToasts(t *testing.T) {
	harness := newTestHarness(t)

	harness.orchestrator.HandleSyncReport(syncq.Report{Succeeded: 2})
	if !hasToast(harness.toasts.Active(), dedup.ToastSuccess) {
		t.Fatal("expected success toast")
	}

	harness.orchestrator.HandleSyncReport(syncq.Report{AuthExpired: true})
	if !hasToast(harness.toasts.Active(), dedup.ToastError) {
		t.Fatal("expected auth toast")
	}
}

func seedVehicle(t *testing.T, persisted *store.Store, id string) {
	t.Helper()
	err := persisted.UpsertVehicle(context.Background(), store.VehicleRecord{
		ID:         id,
		Title:      "2019 Honda Civic",
		PriceCents: 1450000,
		Status:     "listed",
	})
	if err != nil {
		t.Fatalf("seed vehicle %s: %v", id, err)
	}
}

func TestAddVehicleFAQQueuesWhenOffline(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()
	seedVehicle(t, harness.store, "veh-1")

	harness.backend.updateErr = markerr.ErrTransient
	if err := harness.orchestrator.AddVehicleFAQ(ctx, "veh-1", "Any accidents?", ""); err != nil {
		t.Fatalf("add faq: %v", err)
	}

	faqs, err := harness.store.ListVehicleFAQs(ctx, "veh-1")
	if err != nil {
		t.Fatalf("list faqs: %v", err)
	}
	if len(faqs) != 1 {
		t.Fatalf("expected the optimistic local faq, got %d", len(faqs))
	}
	if harness.ledger.Len() != 1 {
		t.Fatalf("expected the faq write queued, ledger len=%d", harness.ledger.Len())
	}
	task := harness.ledger.Snapshot()[0]
	if task.Kind != syncq.KindVehicleUpdate {
		t.Fatalf("queued task kind = %q, want %q", task.Kind, syncq.KindVehicleUpdate)
	}
	if harness.kicker.kicks == 0 {
		t.Fatal("expected an eager sync kick after queueing")
	}
}

func TestAddVehicleFAQSyncsOnline(t *testing.T) {
	harness := newTestHarness(t)
	ctx := context.Background()
	seedVehicle(t, harness.store, "veh-1")

	if err := harness.orchestrator.AddVehicleFAQ(ctx, "veh-1", "Any accidents?", "None reported"); err != nil {
		t.Fatalf("add faq: %v", err)
	}

	if len(harness.backend.updated) != 1 || harness.backend.updated[0] != "veh-1" {
		t.Fatalf("expected one vehicle update pushed, got %v", harness.backend.updated)
	}
	if harness.ledger.Len() != 0 {
		t.Fatalf("nothing should be queued on success, ledger len=%d", harness.ledger.Len())
	}
}
