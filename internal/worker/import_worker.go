// Package worker keeps the SQLite snapshot in step with the upstream dataset.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fonreal/internal/amqp"
	"fonreal/internal/backoff"
	"fonreal/internal/core"
	"fonreal/internal/dataset"
	"fonreal/internal/log"
)

// SnapshotWriter persists a full table.
type SnapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, source string, table *core.Table, importedAt time.Time) error
}

// RefreshConsumer delivers refresh requests.
type RefreshConsumer interface {
	ConsumeRefresh(ctx context.Context, handler amqp.Handler) error
}

// Importer copies the upstream table into the snapshot store.
type Importer struct {
	upstream dataset.Source
	store    SnapshotWriter
	policy   backoff.Policy
	logger   *log.Logger
	now      func() time.Time
}

func NewImporter(upstream dataset.Source, store SnapshotWriter, policy backoff.Policy, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &Importer{
		upstream: upstream,
		store:    store,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Import fetches the upstream table and replaces the snapshot. It returns
// the number of rows written.
func (w *Importer) Import(ctx context.Context) (int, error) {
	start := w.now()
	var table *core.Table
	err := backoff.Retry(ctx, w.policy, func(ctx context.Context) error {
		t, err := w.upstream.Fetch(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "Upstream fetch failed", log.FieldSource, w.upstream.Name(), log.FieldError, err)
			return err
		}
		table = t
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fetch upstream %s: %w", w.upstream.Name(), err)
	}
	if err := w.store.ReplaceSnapshot(ctx, w.upstream.Name(), table, w.now()); err != nil {
		return 0, fmt.Errorf("store snapshot: %w", err)
	}

	w.logger.InfoContext(ctx, "Dataset imported", append(
		log.NewFields().WithDataset(w.upstream.Name(), table.Len()).WithOperation(log.OpImport).ToSlice(),
		log.FieldDuration, w.now().Sub(start).Milliseconds())...)
	return table.Len(), nil
}

// HandleRefresh runs an import for one refresh request.
func (w *Importer) HandleRefresh(ctx context.Context, msg *amqp.RefreshMessage) error {
	w.logger.InfoContext(ctx, "Refresh requested", log.FieldMessageID, msg.ID, "reason", msg.Reason,
		"requested_at", msg.RequestedAt)
	_, err := w.Import(ctx)
	return err
}

// Run imports once, then serves refresh requests from consumer and imports
// every interval until ctx ends. A nil consumer or a zero interval disables
// that half. Periodic failures are logged, not fatal.
func (w *Importer) Run(ctx context.Context, consumer RefreshConsumer, interval time.Duration) error {
	if _, err := w.Import(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup import failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeRefresh(ctx, w.HandleRefresh)
		})
	}
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if _, err := w.Import(ctx); err != nil && ctx.Err() == nil {
						w.logger.ErrorContext(ctx, "Scheduled import failed", log.FieldError, err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
