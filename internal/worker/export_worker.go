// Package worker drains item change events into the spreadsheet backup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gotit/internal/core"
	"gotit/internal/events"
	"gotit/internal/export"
	"gotit/internal/storage"
)

// ExportWorker pushes committed item mutations out to the export backend and
// keeps the rows' export status in step.
type ExportWorker struct {
	storage   *storage.Repository
	appender  export.RowAppender
	remover   export.RowRemover
	batchSize int
}

func NewExportWorker(repo *storage.Repository, appender export.RowAppender, remover export.RowRemover, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   repo,
		appender:  appender,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleChangeMessage processes a single item change event from the queue.
func (w *ExportWorker) HandleChangeMessage(ctx context.Context, msg *events.ItemChangeMessage) error {
	slog.InfoContext(ctx, "Processing item change",
		"op", msg.Op,
		"id", msg.ID,
		"version", msg.Version)

	switch msg.Op {
	case events.OpDelete:
		if w.remover == nil {
			slog.WarnContext(ctx, "No row remover configured, skipping delete", "id", msg.ID)
			return nil
		}
		if err := w.remover.RemoveItem(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove exported row: %w", err)
		}
		return nil

	case events.OpUpsert:
		item, err := w.storage.GetItem(ctx, msg.ID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted since the message was queued; the delete event
			// will clean up the row.
			slog.InfoContext(ctx, "Item gone before export, skipping", "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load item for export: %w", err)
		}
		return w.exportItem(ctx, item)

	default:
		return fmt.Errorf("unknown change op %q", msg.Op)
	}
}

// CatchUp exports every row still marked pending. Run at startup so that
// mutations made while the worker was down are not lost.
func (w *ExportWorker) CatchUp(ctx context.Context) error {
	for {
		pending, err := w.storage.ListPendingExport(ctx, w.batchSize)
		if err != nil {
			return fmt.Errorf("list pending export: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		slog.InfoContext(ctx, "Catching up pending exports", "count", len(pending))
		for _, p := range pending {
			item, err := w.storage.GetItem(ctx, p.ID)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load pending item %d: %w", p.ID, err)
			}
			if err := w.exportItem(ctx, item); err != nil {
				return err
			}
		}
	}
}

func (w *ExportWorker) exportItem(ctx context.Context, item core.Item) error {
	ref, err := w.appender.AppendItem(ctx, item)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, item.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", item.ID, "error", markErr)
		}
		return fmt.Errorf("append exported row: %w", err)
	}

	if err := w.storage.MarkExported(ctx, item.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Item exported", "id", item.ID, "row", ref)
	return nil
}
