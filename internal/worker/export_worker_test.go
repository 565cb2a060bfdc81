package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gotit/internal/core"
	"gotit/internal/events"
	"gotit/internal/export/memory"
	"gotit/internal/storage"
)

func newTestWorker(t *testing.T) (*ExportWorker, *storage.Repository, *memory.Store) {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	backend := memory.New()
	return NewExportWorker(repo, backend, backend, 10), repo, backend
}

func TestHandleUpsertExportsRow(t *testing.T) {
	w, repo, backend := newTestWorker(t)
	ctx := context.Background()

	saved, _ := repo.InsertItem(ctx, core.Item{Name: "Atlas", Category: "Books", Date: "2025-05-01", PriceCents: 1000})

	msg := events.NewItemChangeMessage(events.OpUpsert, saved.ID, 1)
	if err := w.HandleChangeMessage(ctx, msg); err != nil {
		t.Fatalf("HandleChangeMessage: %v", err)
	}

	rows := backend.Rows()
	if rows[saved.ID].Name != "Atlas" {
		t.Errorf("expected exported row, got %+v", rows)
	}

	pending, _ := repo.ListPendingExport(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected row marked exported, still pending: %+v", pending)
	}
}

func TestHandleUpsertForMissingItemIsNoop(t *testing.T) {
	w, _, backend := newTestWorker(t)

	msg := events.NewItemChangeMessage(events.OpUpsert, 404, 1)
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected missing item skipped, got %v", err)
	}
	if len(backend.Rows()) != 0 {
		t.Error("expected no exported rows")
	}
}

func TestHandleDeleteRemovesRow(t *testing.T) {
	w, repo, backend := newTestWorker(t)
	ctx := context.Background()

	saved, _ := repo.InsertItem(ctx, core.Item{Name: "Gone", Category: "Books", Date: "2025-05-01"})
	w.HandleChangeMessage(ctx, events.NewItemChangeMessage(events.OpUpsert, saved.ID, 1))
	if err := w.HandleChangeMessage(ctx, events.NewItemChangeMessage(events.OpDelete, saved.ID, 0)); err != nil {
		t.Fatalf("HandleChangeMessage delete: %v", err)
	}
	if len(backend.Rows()) != 0 {
		t.Errorf("expected row removed, got %+v", backend.Rows())
	}
}

func TestHandleUnknownOp(t *testing.T) {
	w, _, _ := newTestWorker(t)

	msg := &events.ItemChangeMessage{Op: "truncate", ID: 1}
	if err := w.HandleChangeMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestCatchUpDrainsPendingRows(t *testing.T) {
	w, repo, backend := newTestWorker(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		repo.InsertItem(ctx, core.Item{Name: name, Category: "Books", Date: "2025-05-01", PriceCents: 100})
	}

	if err := w.CatchUp(ctx); err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if len(backend.Rows()) != 3 {
		t.Errorf("expected 3 exported rows, got %d", len(backend.Rows()))
	}
	pending, _ := repo.ListPendingExport(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected no pending rows, got %+v", pending)
	}
}

type failingAppender struct{}

func (failingAppender) AppendItem(context.Context, core.Item) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportFailureMarksRow(t *testing.T) {
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	w := NewExportWorker(repo, failingAppender{}, nil, 10)
	ctx := context.Background()

	saved, _ := repo.InsertItem(ctx, core.Item{Name: "X", Category: "Books", Date: "2025-05-01"})
	msg := events.NewItemChangeMessage(events.OpUpsert, saved.ID, 1)
	if err := w.HandleChangeMessage(ctx, msg); err == nil {
		t.Fatal("expected export error")
	}

	// The row left the pending set: it is parked in the error state and
	// will come back only through an explicit retry.
	pending, _ := repo.ListPendingExport(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected errored row out of pending set, got %+v", pending)
	}
}
