package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gotit/internal/core"
	"gotit/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain errors onto status codes. Validation failures
// name the offending field; store failures stay generic on the wire.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldError, err,
			log.FieldHTTPMethod, r.Method,
			log.FieldHTTPPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseCriteria builds filter criteria from query parameters. Price bounds
// use the same decimal format as item prices. Date bounds pass through as
// given; a bound that fails to parse later filters nothing out.
func parseCriteria(q map[string][]string) (core.Criteria, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	c := core.Criteria{
		Category: get("category"),
		DateFrom: get("from"),
		DateTo:   get("to"),
	}

	if v := get("min_price"); v != "" {
		cents, err := core.ParsePriceToCents(v)
		if err != nil {
			return core.Criteria{}, errors.New("invalid min_price")
		}
		c.MinPriceCents = &cents
	}
	if v := get("max_price"); v != "" {
		cents, err := core.ParsePriceToCents(v)
		if err != nil {
			return core.Criteria{}, errors.New("invalid max_price")
		}
		c.MaxPriceCents = &cents
	}

	return c, nil
}

func criteriaKey(c core.Criteria) string {
	var b strings.Builder
	b.WriteString(c.Category)
	b.WriteByte('|')
	if c.MinPriceCents != nil {
		b.WriteString(strconv.FormatInt(*c.MinPriceCents, 10))
	}
	b.WriteByte('|')
	if c.MaxPriceCents != nil {
		b.WriteString(strconv.FormatInt(*c.MaxPriceCents, 10))
	}
	b.WriteByte('|')
	b.WriteString(c.DateFrom)
	b.WriteByte('|')
	b.WriteString(c.DateTo)
	return b.String()
}

type itemsResponse struct {
	Groups []core.Group `json:"groups"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := criteriaKey(criteria)
	if groups, ok := s.projectionCache.Get(key); ok {
		writeJSON(w, http.StatusOK, itemsResponse{Groups: groups})
		return
	}

	items, err := s.manager.Items(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	groups := core.Project(items, criteria)
	s.projectionCache.Set(key, groups)
	writeJSON(w, http.StatusOK, itemsResponse{Groups: groups})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in core.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	item, err := s.manager.Add(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var in core.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	item, err := s.manager.Update(r.Context(), id, in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.manager.Remove(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// handleListCategories returns the category registry with the catch-all
// entry first, ready for a filter dropdown.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	const key = "categories"
	if cats, ok := s.categoryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
		return
	}

	cats := append([]string{core.CategoryAll}, s.manager.Categories()...)
	s.categoryCache.Set(key, cats)
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
}
