package memory

import (
	"context"
	"testing"

	"gotit/internal/core"
)

func TestAppendAndRemove(t *testing.T) {
	store := New()
	ctx := context.Background()

	item := core.Item{ID: 7, Name: "Atlas", Category: "Books", Date: "2025-05-01", PriceCents: 1000}
	ref, err := store.AppendItem(ctx, item)
	if err != nil {
		t.Fatalf("AppendItem: %v", err)
	}
	if ref != "mem:7" {
		t.Errorf("unexpected row ref %q", ref)
	}

	// Re-appending replaces, not duplicates.
	item.Name = "World Atlas"
	store.AppendItem(ctx, item)

	rows := store.Rows()
	if len(rows) != 1 || rows[7].Name != "World Atlas" {
		t.Errorf("unexpected rows %+v", rows)
	}

	if err := store.RemoveItem(ctx, 7); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := store.RemoveItem(ctx, 7); err != nil {
		t.Fatalf("RemoveItem absent row: %v", err)
	}
	if len(store.Rows()) != 0 {
		t.Error("expected no rows after remove")
	}
}
