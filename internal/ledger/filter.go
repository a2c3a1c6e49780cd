// Package ledger holds the pure functions that turn entry collections into
// the views a dashboard renders: filtered tables, per-category totals,
// calendar markers and summary cards. Nothing here blocks or mutates its
// inputs.
package ledger

import (
	"strings"
	"time"

	"wallet/internal/core"
)

// Criteria narrows a collection. Zero-valued fields match everything.
type Criteria struct {
	SearchText string
	Category   string
	ExactDate  *time.Time
}

// IsEmpty reports whether the criteria would match every entry.
func (c Criteria) IsEmpty() bool {
	return c.SearchText == "" && c.Category == "" && c.ExactDate == nil
}

// Filter returns the entries matching all criteria, in source order.
func Filter(entries []core.Entry, c Criteria) []core.Entry {
	search := strings.ToLower(c.SearchText)
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Counterpart), search) &&
			!strings.Contains(strings.ToLower(e.Notes), search) {
			continue
		}
		if c.Category != "" && e.Category != c.Category {
			continue
		}
		if c.ExactDate != nil && !core.SameDay(e.Date, *c.ExactDate) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CategoryTotals sums amounts per category in the order of categories.
// Categories summing to zero are left out, and so are entries whose
// category is not in the list.
func CategoryTotals(entries []core.Entry, categories []string) []core.CategoryTotal {
	sums := make(map[string]int64, len(categories))
	for _, e := range entries {
		sums[e.Category] += e.Amount.Cents
	}
	out := make([]core.CategoryTotal, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		if sums[cat] == 0 {
			continue
		}
		out = append(out, core.CategoryTotal{Category: cat, Total: core.Money{Cents: sums[cat]}})
	}
	return out
}

// Total sums the amounts of entries.
func Total(entries []core.Entry) core.Money {
	var total core.Money
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
