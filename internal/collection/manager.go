// Package collection holds the authoritative in-memory view of the item
// store: the observable item list and the append-only category registry.
// All mutations go through the Manager, which validates input, persists it,
// and republishes the committed list to subscribers in commit order.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gotit/internal/core"
	"gotit/internal/events"
)

// Store is the durable keyed item table the manager mediates.
type Store interface {
	InsertItem(ctx context.Context, item core.Item) (core.Item, error)
	UpdateItem(ctx context.Context, item core.Item) error
	DeleteItem(ctx context.Context, id int64) error
	GetItemVersion(ctx context.Context, id int64) (int64, error)
	ListItems(ctx context.Context) ([]core.Item, error)
	ListSnapshot(ctx context.Context) ([]core.Item, error)
}

// Publisher announces committed mutations to external consumers. Publishing
// is best-effort: a failure never fails the user's mutation.
type Publisher interface {
	PublishItemChange(ctx context.Context, op string, id, version int64) error
}

// subscriberBuffer bounds how far a subscriber may lag before publishers
// block on it.
const subscriberBuffer = 64

type Manager struct {
	store     Store
	publisher Publisher
	sorted    bool
	now       func() time.Time

	mu          sync.Mutex
	categories  []string
	known       map[string]struct{}
	subscribers map[int]chan []core.Item
	nextSub     int
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher attaches a change-event publisher.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithSortedCategories keeps the registry sorted on every append instead of
// only at initialization.
func WithSortedCategories(sorted bool) Option {
	return func(m *Manager) { m.sorted = sorted }
}

// withClock fixes the manager's notion of "today" for tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a manager around an explicitly provided store. The store is
// passed in, never pulled from a global.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		now:         time.Now,
		known:       make(map[string]struct{}),
		subscribers: make(map[int]chan []core.Item),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize seeds the category registry from a one-time snapshot of the
// store and publishes the current list. The registry is populated exactly
// once here; later additions come only through Add and Update.
func (m *Manager) Initialize(ctx context.Context) error {
	snapshot, err := m.store.ListSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("seed category registry: %w", err)
	}

	m.mu.Lock()
	for _, item := range snapshot {
		if _, ok := m.known[item.Category]; ok {
			continue
		}
		m.known[item.Category] = struct{}{}
		m.categories = append(m.categories, item.Category)
	}
	sort.Strings(m.categories)
	m.notifyLocked(snapshot)
	m.mu.Unlock()

	slog.InfoContext(ctx, "Collection manager initialized",
		"items", len(snapshot),
		"categories", len(m.categories))
	return nil
}

// Add validates the input, persists the item, and registers its category if
// new. Returns the persisted item with its assigned id.
func (m *Manager) Add(ctx context.Context, in core.ItemInput) (core.Item, error) {
	item, err := in.Resolve(m.now())
	if err != nil {
		return core.Item{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved, err := m.store.InsertItem(ctx, item)
	if err != nil {
		return core.Item{}, fmt.Errorf("add item: %w", err)
	}

	m.registerCategoryLocked(saved.Category)
	m.publish(ctx, events.OpUpsert, saved.ID, 1)
	m.republishLocked(ctx)
	return saved, nil
}

// Update replaces all mutable fields of the item keyed by id, with the same
// validation as Add. Returns core.ErrNotFound when the id is absent.
func (m *Manager) Update(ctx context.Context, id int64, in core.ItemInput) (core.Item, error) {
	item, err := in.Resolve(m.now())
	if err != nil {
		return core.Item{}, err
	}
	item.ID = id

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return core.Item{}, err
	}

	m.registerCategoryLocked(item.Category)

	version, err := m.store.GetItemVersion(ctx, id)
	if err != nil {
		version = 0
	}
	m.publish(ctx, events.OpUpsert, id, version)
	m.republishLocked(ctx)
	return item, nil
}

// Remove deletes the item by id. The category registry is deliberately left
// alone so the category stays available for reuse.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteItem(ctx, id); err != nil {
		return err
	}

	m.publish(ctx, events.OpDelete, id, 0)
	m.republishLocked(ctx)
	return nil
}

// Items returns the current item list ordered newest first.
func (m *Manager) Items(ctx context.Context) ([]core.Item, error) {
	return m.store.ListItems(ctx)
}

// Categories returns the known-category registry. The registry only grows:
// it may name categories no longer used by any item.
func (m *Manager) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.categories...)
}

// Subscribe returns a channel that receives the full item list after every
// committed mutation, in commit order. The caller must drain it and call
// Unsubscribe when done.
func (m *Manager) Subscribe() (int, <-chan []core.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan []core.Item, subscriberBuffer)
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe detaches and closes a subscriber channel.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.subscribers[id]; ok {
		delete(m.subscribers, id)
		close(ch)
	}
}

func (m *Manager) registerCategoryLocked(category string) {
	if _, ok := m.known[category]; ok {
		return
	}
	m.known[category] = struct{}{}
	m.categories = append(m.categories, category)
	if m.sorted {
		sort.Strings(m.categories)
	}
}

// republishLocked reloads the committed list and fans it out. The list comes
// from the store, not a second cached copy, so the view cannot diverge.
func (m *Manager) republishLocked(ctx context.Context) {
	items, err := m.store.ListItems(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload item list", "error", err)
		return
	}
	m.notifyLocked(items)
}

func (m *Manager) notifyLocked(items []core.Item) {
	for _, ch := range m.subscribers {
		// Each subscriber gets its own copy.
		snapshot := append([]core.Item(nil), items...)
		ch <- snapshot
	}
}

func (m *Manager) publish(ctx context.Context, op string, id, version int64) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishItemChange(ctx, op, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish item change",
			"op", op, "id", id, "error", err)
	}
}
