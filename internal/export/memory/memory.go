// Package memory is an in-memory export backend used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"gotit/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows map[int64]core.Item
}

func New() *Store {
	return &Store{rows: make(map[int64]core.Item)}
}

// AppendItem stores the item row, replacing a previous version of the same
// item, and returns a synthetic row reference.
func (s *Store) AppendItem(_ context.Context, item core.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[item.ID] = item
	return fmt.Sprintf("mem:%d", item.ID), nil
}

// RemoveItem drops the row for the given item id. Removing an absent row is
// not an error: the export is eventually consistent with the store.
func (s *Store) RemoveItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Rows returns a copy of the stored rows, for assertions.
func (s *Store) Rows() map[int64]core.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]core.Item, len(s.rows))
	for id, item := range s.rows {
		out[id] = item
	}
	return out
}
