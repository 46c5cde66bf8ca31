package app

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("market-runtime starting",
		"environment", r.cfg.Environment,
		"db_path", r.cfg.DBPath,
		"pending_writes", r.ledger.Len(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.worker.Start(groupCtx)
	})
	group.Go(func() error {
		return r.watcher.Start(groupCtx)
	})
	group.Go(func() error {
		return r.push.Start(groupCtx)
	})
	group.Go(func() error {
		return r.runRefreshSchedule(groupCtx)
	})

	// Pull once right away so the catalog is fresh on first paint.
	go func() {
		refreshCtx, cancel := context.WithTimeout(groupCtx, time.Minute)
		defer cancel()
		if err := r.orchestrator.Refresh(refreshCtx, "", true); err != nil {
			r.logger.Warn("initial refresh failed", "error", err)
		}
	}()

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runtime) runRefreshSchedule(ctx context.Context) error {
	if r.cfg.RefreshCron == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	schedule := cron.New()
	_, err := schedule.AddFunc(r.cfg.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := r.orchestrator.Refresh(refreshCtx, "", false); err != nil {
			r.logger.Warn("scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	schedule.Start()
	defer schedule.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
