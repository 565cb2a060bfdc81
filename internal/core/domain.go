package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used everywhere: storage, listing,
// filtering, rendering.
const DateLayout = "2006-01-02"

// CategoryAll is the sentinel a caller passes to request the unfiltered view.
const CategoryAll = "all"

type (
	// Item is one catalogued object. ID is assigned by the store on insert
	// and never changes afterwards.
	Item struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		ImageRef    string `json:"image_ref,omitempty"`
		PriceCents  int64  `json:"price_cents"`
	}

	// ItemInput carries raw form fields for a create or full-replace update.
	// Price arrives as text and is resolved to cents.
	ItemInput struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		ImageRef    string `json:"image_ref"`
		Price       string `json:"price"`
	}
)

// ErrNotFound reports an operation keyed by an id absent from the store.
var ErrNotFound = errors.New("item not found")

// ValidationError identifies exactly one failing input field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// Validation field names, in checking precedence.
const (
	FieldName     = "name"
	FieldCategory = "category"
	FieldPrice    = "price"
)

// Resolve validates the input and builds the item to persist. Fields are
// checked in fixed precedence (name, category, price) so the reported field
// is deterministic when several are invalid at once. An empty price resolves
// to zero; an empty date resolves to today.
func (in ItemInput) Resolve(now time.Time) (Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Item{}, &ValidationError{Field: FieldName}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return Item{}, &ValidationError{Field: FieldCategory}
	}

	cents, err := ParsePriceToCents(in.Price)
	if err != nil {
		return Item{}, &ValidationError{Field: FieldPrice}
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = now.Format(DateLayout)
	}

	return Item{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Date:        date,
		ImageRef:    strings.TrimSpace(in.ImageRef),
		PriceCents:  cents,
	}, nil
}

// ParseDate parses an ISO calendar date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
