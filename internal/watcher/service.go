package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Service watches the inventory import directory for dropped JSON
// files and hands each one to the import callback.
type Service struct {
	root     string
	logger   *slog.Logger
	onImport func(context.Context, string)
	watcher  *fsnotify.Watcher
}

func New(root string, logger *slog.Logger, onImport func(context.Context, string)) (*Service, error) {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		root:     strings.TrimSpace(root),
		logger:   logger.With("component", "import-watcher"),
		onImport: onImport,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	if s.root == "" {
		s.logger.Info("import watcher disabled, no directory configured")
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create import directory: %w", err)
	}
	if err := s.watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch import directory %s: %w", s.root, err)
	}

	// Pick up files that were dropped while the runtime was down.
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read import directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			s.onImport(ctx, filepath.Join(s.root, entry.Name()))
		}
	}

	s.logger.Info("import watcher started", "root", s.root)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("import watcher stopped")
			return nil
		case event := <-s.watcher.Events:
			s.handleEvent(ctx, event)
		case err := <-s.watcher.Errors:
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".json" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	s.logger.Info("inventory file changed", "path", event.Name, "op", event.Op.String())
	s.onImport(ctx, event.Name)
}
