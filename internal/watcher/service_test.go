package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartImportsPreexistingFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "stock.json")
	if err := os.WriteFile(path, []byte(`{"vehicles": []}`), 0o644); err != nil {
		t.Fatalf("write drop file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write text file: %v", err)
	}

	imported := make(chan string, 4)
	service, err := New(root, testLogger(), func(_ context.Context, path string) {
		imported <- path
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()

	select {
	case got := <-imported:
		if got != path {
			t.Fatalf("imported %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("preexisting json file was not imported")
	}

	select {
	case got := <-imported:
		t.Fatalf("unexpected second import %q", got)
	default:
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watcher stopped with %v", err)
	}
}

func TestHandleEventFiltersByExtensionAndOp(t *testing.T) {
	imported := make(chan string, 4)
	service, err := New(t.TempDir(), testLogger(), func(_ context.Context, path string) {
		imported <- path
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { service.watcher.Close() })

	ctx := context.Background()
	service.handleEvent(ctx, fsnotify.Event{Name: "stock.json", Op: fsnotify.Create})
	service.handleEvent(ctx, fsnotify.Event{Name: "stock.json", Op: fsnotify.Chmod})
	service.handleEvent(ctx, fsnotify.Event{Name: "notes.txt", Op: fsnotify.Create})
	service.handleEvent(ctx, fsnotify.Event{Name: "stock.json", Op: fsnotify.Write})

	if len(imported) != 2 {
		t.Fatalf("expected create and write imports only, got %d", len(imported))
	}
	if got := <-imported; got != "stock.json" {
		t.Fatalf("first import %q, want stock.json", got)
	}
}

func TestStartWithoutRootDisables(t *testing.T) {
	service, err := New("", testLogger(), func(context.Context, string) {
		t.Fatal("import callback must not fire when disabled")
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("disabled watcher stopped with %v", err)
	}
}
