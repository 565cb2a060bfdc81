package core

import "sort"

type (
	// Criteria selects the items that survive into a projection. Zero value
	// means "everything": no category filter, full price range, open dates.
	Criteria struct {
		// Category keeps items of one category; empty or CategoryAll keeps all.
		Category string
		// Price bounds in cents, inclusive; nil means unbounded.
		MinPriceCents *int64
		MaxPriceCents *int64
		// Date bounds as ISO dates, inclusive; empty means unbounded.
		DateFrom string
		DateTo   string
	}

	// Group is one category of the projection with its aggregates. Items keep
	// the order they arrived in, which is the store order (newest first).
	Group struct {
		Category   string `json:"category"`
		TotalCents int64  `json:"total_cents"`
		Count      int    `json:"count"`
		Items      []Item `json:"items"`
	}
)

// Project filters items by the criteria, groups survivors by category, and
// orders groups by total price descending. It is pure: same inputs always
// produce the same projection, and the input slice is never mutated.
func Project(items []Item, c Criteria) []Group {
	byCategory := make(map[string]*Group)
	var order []string

	for _, item := range items {
		if !c.matches(item) {
			continue
		}
		g, ok := byCategory[item.Category]
		if !ok {
			g = &Group{Category: item.Category}
			byCategory[item.Category] = g
			order = append(order, item.Category)
		}
		g.Items = append(g.Items, item)
		g.TotalCents += item.PriceCents
		g.Count++
	}

	groups := make([]Group, 0, len(order))
	for _, cat := range order {
		groups = append(groups, *byCategory[cat])
	}
	// Stable: ties keep first-appearance order.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TotalCents > groups[j].TotalCents
	})
	return groups
}

func (c Criteria) matches(item Item) bool {
	if c.Category != "" && c.Category != CategoryAll && item.Category != c.Category {
		return false
	}
	if c.MinPriceCents != nil && item.PriceCents < *c.MinPriceCents {
		return false
	}
	if c.MaxPriceCents != nil && item.PriceCents > *c.MaxPriceCents {
		return false
	}
	return dateInRange(item.Date, c.DateFrom, c.DateTo)
}

// dateInRange reports whether date falls within [from, to], both bounds
// inclusive and optional. A date that fails to parse, on either side, keeps
// the item: a malformed date must never hide it.
func dateInRange(date, from, to string) bool {
	d, err := ParseDate(date)
	if err != nil {
		return true
	}
	if from != "" {
		f, err := ParseDate(from)
		if err != nil {
			return true
		}
		if d.Before(f) {
			return false
		}
	}
	if to != "" {
		t, err := ParseDate(to)
		if err != nil {
			return true
		}
		if d.After(t) {
			return false
		}
	}
	return true
}
