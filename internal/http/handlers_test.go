package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"gotit/internal/collection"
	"gotit/internal/core"
	"gotit/internal/log"
)

// memStore is an in-memory item table mirroring the real store's ordering,
// newest date first with id as tiebreaker.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Item
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, items: make(map[int64]core.Item)}
}

func (s *memStore) InsertItem(ctx context.Context, item core.Item) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	s.items[item.ID] = item
	return item, nil
}

func (s *memStore) UpdateItem(ctx context.Context, item core.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return core.ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *memStore) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) GetItemVersion(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return 0, core.ErrNotFound
	}
	return 1, nil
}

func (s *memStore) ListItems(ctx context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) ListSnapshot(ctx context.Context) ([]core.Item, error) {
	return s.ListItems(ctx)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	manager := collection.New(newMemStore())
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize manager: %v", err)
	}

	logger := log.New(log.Config{Component: "http-test"})
	srv := NewServer(":0", manager, logger)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createItem(t *testing.T, srv *Server, body string) core.Item {
	t.Helper()

	rec := doRequest(t, srv, http.MethodPost, "/api/items", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d, body %s", rec.Code, rec.Body.String())
	}
	var item core.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode created item: %v", err)
	}
	return item
}

func decodeGroups(t *testing.T, rec *httptest.ResponseRecorder) []core.Group {
	t.Helper()

	var resp itemsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	return resp.Groups
}

func TestCreateItem(t *testing.T) {
	srv := newTestServer(t)

	item := createItem(t, srv, `{"name":"Boba Fett","category":"Figures","price":"19.99","date":"2024-03-01"}`)

	if item.ID == 0 {
		t.Error("expected assigned id")
	}
	if item.Name != "Boba Fett" {
		t.Errorf("name = %q, want Boba Fett", item.Name)
	}
	if item.PriceCents != 1999 {
		t.Errorf("price_cents = %d, want 1999", item.PriceCents)
	}
}

func TestCreateItemValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing name", `{"category":"Figures"}`, "name"},
		{"missing category", `{"name":"Boba Fett"}`, "category"},
		{"bad price", `{"name":"Boba Fett","category":"Figures","price":"abc"}`, "price"},
		{"name reported before category", `{"price":"abc"}`, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/items", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Field != tt.wantField {
				t.Errorf("field = %q, want %q", resp.Field, tt.wantField)
			}
		})
	}
}

func TestCreateItemMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/items", `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListItemsGrouped(t *testing.T) {
	srv := newTestServer(t)

	createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00","date":"2024-01-01"}`)
	createItem(t, srv, `{"name":"Hyperion","category":"Books","price":"5.00","date":"2024-01-02"}`)
	createItem(t, srv, `{"name":"Yo-yo","category":"Toys","price":"8.00","date":"2024-01-03"}`)

	rec := doRequest(t, srv, http.MethodGet, "/api/items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	groups := decodeGroups(t, rec)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Category != "Books" || groups[0].TotalCents != 1500 {
		t.Errorf("first group = %s/%d, want Books/1500", groups[0].Category, groups[0].TotalCents)
	}
	if groups[1].Category != "Toys" || groups[1].TotalCents != 800 {
		t.Errorf("second group = %s/%d, want Toys/800", groups[1].Category, groups[1].TotalCents)
	}
}

func TestListItemsFilters(t *testing.T) {
	srv := newTestServer(t)

	createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00","date":"2024-01-01"}`)
	createItem(t, srv, `{"name":"Yo-yo","category":"Toys","price":"8.00","date":"2024-02-01"}`)

	tests := []struct {
		name      string
		query     string
		wantCats  []string
		wantItems int
	}{
		{"by category", "?category=Books", []string{"Books"}, 1},
		{"category all", "?category=all", []string{"Books", "Toys"}, 2},
		{"min price", "?min_price=9.00", []string{"Books"}, 1},
		{"max price", "?max_price=8.00", []string{"Toys"}, 1},
		{"date range", "?from=2024-01-15&to=2024-02-15", []string{"Toys"}, 1},
		{"no match", "?category=Games", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/api/items"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			groups := decodeGroups(t, rec)
			var cats []string
			total := 0
			for _, g := range groups {
				cats = append(cats, g.Category)
				total += g.Count
			}
			if strings.Join(cats, ",") != strings.Join(tt.wantCats, ",") {
				t.Errorf("categories = %v, want %v", cats, tt.wantCats)
			}
			if total != tt.wantItems {
				t.Errorf("item count = %d, want %d", total, tt.wantItems)
			}
		})
	}
}

func TestListItemsBadPriceParam(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/items?min_price=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateItem(t *testing.T) {
	srv := newTestServer(t)
	item := createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00","date":"2024-01-01"}`)

	rec := doRequest(t, srv, http.MethodPut, "/api/items/"+itoa(item.ID),
		`{"name":"Dune Messiah","category":"Books","price":"12.50","date":"2024-01-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var updated core.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated item: %v", err)
	}
	if updated.Name != "Dune Messiah" || updated.PriceCents != 1250 {
		t.Errorf("updated = %s/%d, want Dune Messiah/1250", updated.Name, updated.PriceCents)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/items/999",
		`{"name":"Ghost","category":"Books","price":"1.00"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteItem(t *testing.T) {
	srv := newTestServer(t)
	item := createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00"}`)

	rec := doRequest(t, srv, http.MethodDelete, "/api/items/"+itoa(item.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/items/"+itoa(item.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteInvalidID(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/items/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListCategories(t *testing.T) {
	srv := newTestServer(t)

	createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00"}`)
	createItem(t, srv, `{"name":"Yo-yo","category":"Toys","price":"8.00"}`)

	rec := doRequest(t, srv, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp categoriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(resp.Categories) != 3 || resp.Categories[0] != core.CategoryAll {
		t.Fatalf("categories = %v, want [all Books Toys]", resp.Categories)
	}
}

func TestProjectionCacheInvalidatedByMutation(t *testing.T) {
	srv := newTestServer(t)

	createItem(t, srv, `{"name":"Dune","category":"Books","price":"10.00"}`)

	rec := doRequest(t, srv, http.MethodGet, "/api/items", "")
	if got := len(decodeGroups(t, rec)); got != 1 {
		t.Fatalf("got %d groups before mutation, want 1", got)
	}

	createItem(t, srv, `{"name":"Yo-yo","category":"Toys","price":"8.00"}`)

	rec = doRequest(t, srv, http.MethodGet, "/api/items", "")
	if got := len(decodeGroups(t, rec)); got != 2 {
		t.Errorf("got %d groups after mutation, want 2", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
