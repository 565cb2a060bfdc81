// Package storage persists collection items in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gotit/internal/core"

	_ "modernc.org/sqlite"
)

// Repository is the durable keyed item table. It assigns ids on insert and
// lists items newest first.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the SQLite database at dbPath and
// applies pending migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const itemColumns = `id, name, description, category, date, image_ref, price_cents`

// InsertItem persists a new item and returns it with the assigned id.
func (r *Repository) InsertItem(ctx context.Context, item core.Item) (core.Item, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO items (name, description, category, date, image_ref, price_cents)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.Name, item.Description, item.Category, item.Date, item.ImageRef, item.PriceCents,
	)
	if err != nil {
		return core.Item{}, fmt.Errorf("insert item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return core.Item{}, fmt.Errorf("get inserted item id: %w", err)
	}
	item.ID = id

	slog.InfoContext(ctx, "Item saved",
		"id", item.ID,
		"name", item.Name,
		"category", item.Category,
		"price_cents", item.PriceCents)

	return item, nil
}

// UpdateItem replaces all mutable fields of the item keyed by its id, bumps
// the version, and queues the row for re-export. Returns core.ErrNotFound
// when the id is absent.
func (r *Repository) UpdateItem(ctx context.Context, item core.Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items
		 SET name = ?, description = ?, category = ?, date = ?, image_ref = ?, price_cents = ?,
		     version = version + 1, export_status = 'pending', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		item.Name, item.Description, item.Category, item.Date, item.ImageRef, item.PriceCents,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteItem removes the item keyed by id. Returns core.ErrNotFound when the
// id is absent.
func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetItem returns the item keyed by id, or core.ErrNotFound.
func (r *Repository) GetItem(ctx context.Context, id int64) (core.Item, error) {
	var item core.Item
	err := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Description, &item.Category, &item.Date, &item.ImageRef, &item.PriceCents)
	if err == sql.ErrNoRows {
		return core.Item{}, core.ErrNotFound
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetItemVersion returns the current version counter of the item.
func (r *Repository) GetItemVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM items WHERE id = ?`, id).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get item version: %w", err)
	}
	return version, nil
}

// ListItems returns every item ordered by date descending, newest first,
// with the insert order breaking ties.
func (r *Repository) ListItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY date DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var item core.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Category, &item.Date, &item.ImageRef, &item.PriceCents); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSnapshot returns a point-in-time read of the full item list. The
// collection manager uses it once, at startup, to seed the category registry.
func (r *Repository) ListSnapshot(ctx context.Context) ([]core.Item, error) {
	return r.ListItems(ctx)
}

// PendingExport identifies a row the export worker still has to push out.
type PendingExport struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

// ListPendingExport returns up to limit rows awaiting export, oldest first.
func (r *Repository) ListPendingExport(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM items
		 WHERE export_status = 'pending' ORDER BY id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var p PendingExport
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkExported records that the item's row reached the export backend.
func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET export_status = 'exported' WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError records a failed export attempt so the row can be retried.
func (r *Repository) MarkExportError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET export_status = 'error' WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}
