// Package export defines the outbound ports for backing up the collection
// to a spreadsheet, with a Google Sheets implementation and an in-memory one
// for tests.
package export

import (
	"context"

	"gotit/internal/core"
)

type (
	// RowAppender writes one item as a spreadsheet row and returns a row
	// reference. Appending an item that already has a row replaces it.
	RowAppender interface {
		AppendItem(ctx context.Context, item core.Item) (rowRef string, err error)
	}

	// RowRemover removes the row of a deleted item, keyed by item id.
	RowRemover interface {
		RemoveItem(ctx context.Context, id int64) error
	}
)
