package collection

import (
	"context"

	"gotit/internal/core"
)

// Result delivers the outcome of an asynchronous mutation. The screen that
// issued it may already be gone; the result stays observable regardless.
type Result struct {
	Item core.Item
	Err  error
}

// AddAsync issues Add without blocking the caller. The returned channel
// receives exactly one Result and is never closed before that.
func (m *Manager) AddAsync(ctx context.Context, in core.ItemInput) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		item, err := m.Add(ctx, in)
		out <- Result{Item: item, Err: err}
		close(out)
	}()
	return out
}

// UpdateAsync issues Update without blocking the caller.
func (m *Manager) UpdateAsync(ctx context.Context, id int64, in core.ItemInput) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		item, err := m.Update(ctx, id, in)
		out <- Result{Item: item, Err: err}
		close(out)
	}()
	return out
}

// RemoveAsync issues Remove without blocking the caller.
func (m *Manager) RemoveAsync(ctx context.Context, id int64) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- m.Remove(ctx, id)
		close(out)
	}()
	return out
}
