package syncq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gearhaus/market-runtime/internal/markerr"
)

// Writer flushes one task to the backend. Implemented by the remote
// API client.
type Writer interface {
	Apply(ctx context.Context, task Task) error
}

// Report summarizes one drain pass.
type Report struct {
	Succeeded   int
	Failed      int
	Evicted     int
	AuthExpired bool
}

func (r Report) Empty() bool {
	return r.Succeeded == 0 && r.Failed == 0 && r.Evicted == 0 && !r.AuthExpired
}

// Worker drains the ledger on an interval, plus an eager pass shortly
// after Kick. Tasks flush sequentially in ledger order, so two writes
// for the same entity can never race each other on the wire.
type Worker struct {
	ledger      *Ledger
	writer      Writer
	logger      *slog.Logger
	interval    time.Duration
	eagerDelay  time.Duration
	maxAttempts int
	onReport    func(Report)

	kick chan struct{}

	mu       sync.Mutex
	draining bool
}

// NewWorker builds a drain worker. maxAttempts of zero disables the
// retry ceiling, so a transient failure is retried indefinitely.
func NewWorker(ledger *Ledger, writer Writer, interval, eagerDelay time.Duration, maxAttempts int, onReport func(Report), logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if eagerDelay < 0 {
		eagerDelay = 0
	}
	return &Worker{
		ledger:      ledger,
		writer:      writer,
		logger:      logger.With("component", "sync-worker"),
		interval:    interval,
		eagerDelay:  eagerDelay,
		maxAttempts: maxAttempts,
		onReport:    onReport,
		kick:        make(chan struct{}, 1),
	}
}

// Kick requests an eager drain pass. Safe to call from any goroutine;
// a pending kick coalesces with later ones.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Start runs the drain loop until ctx is done. One eager pass runs
// shortly after start, so writes recovered from storage or queued
// before the first tick never wait out a full interval.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sync worker started", "interval", w.interval, "pending", w.ledger.Len())
	w.Kick()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.report(w.RunOnce(ctx))
		case <-w.kick:
			if w.eagerDelay > 0 {
				timer := time.NewTimer(w.eagerDelay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
			w.report(w.RunOnce(ctx))
		}
	}
}

// RunOnce drains the ledger once. Only one pass runs at a time; a
// call that overlaps an active pass returns an empty report.
func (w *Worker) RunOnce(ctx context.Context) Report {
	w.mu.Lock()
	if w.draining {
		w.mu.Unlock()
		return Report{}
	}
	w.draining = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.draining = false
		w.mu.Unlock()
	}()

	var report Report
	for _, task := range w.ledger.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		err := w.writer.Apply(ctx, task)
		if err == nil {
			w.ledger.Remove(ctx, task.ID)
			report.Succeeded++
			continue
		}

		switch {
		case errors.Is(err, markerr.ErrAuthExpired):
			// The session is gone for every remaining task too.
			// Leave the ledger untouched and stop the pass.
			w.logger.Warn("drain paused, session expired", "task", task.ID)
			report.AuthExpired = true
			return report
		case errors.Is(err, markerr.ErrValidation), errors.Is(err, markerr.ErrNotFound):
			w.logger.Error("task rejected by backend, evicting", "task", task.ID, "error", err)
			w.ledger.Remove(ctx, task.ID)
			report.Evicted++
		default:
			attempts := w.ledger.MarkFailed(ctx, task.ID, err)
			report.Failed++
			w.logger.Warn("task flush failed", "task", task.ID, "attempts", attempts, "error", err)
			if w.maxAttempts > 0 && attempts >= w.maxAttempts {
				w.logger.Error("task exceeded retry ceiling, evicting", "task", task.ID, "attempts", attempts)
				w.ledger.Remove(ctx, task.ID)
				report.Evicted++
			}
		}
	}
	return report
}

func (w *Worker) report(report Report) {
	if w.onReport == nil || report.Empty() {
		return
	}
	w.onReport(report)
}
