package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallet/internal/core"
)

// Column layout of every tab: A Date, B Category, C Counterpart, D Amount,
// E Notes, F ID.
var header = []any{"Date", "Category", "Counterpart", "Amount", "Notes", "ID"}

const (
	colDate = iota
	colCategory
	colCounterpart
	colAmount
	colNotes
	colID
)

const dateLayout = "2006-01-02"

func entryRow(e core.Entry) []any {
	return []any{
		e.Date.Format(dateLayout),
		e.Category,
		e.Counterpart,
		e.Amount.String(),
		e.Notes,
		e.ID,
	}
}

// parseRows converts a values matrix into entries. The header row and rows
// that do not parse are skipped.
func parseRows(values [][]any, v core.Variant) []core.Entry {
	var out []core.Entry
	for _, row := range values {
		e, err := parseRow(toStrings(row), v)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

func parseRow(cols []string, v core.Variant) (core.Entry, error) {
	if len(cols) <= colAmount {
		return core.Entry{}, fmt.Errorf("short row: %d columns", len(cols))
	}
	date, err := time.Parse(dateLayout, cols[colDate])
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse date %q: %w", cols[colDate], err)
	}
	amount, err := core.ParseAmount(cols[colAmount])
	if err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{
		Variant:     v,
		Amount:      amount,
		Category:    cols[colCategory],
		Counterpart: cols[colCounterpart],
		Date:        date,
		Notes:       safeGet(cols, colNotes),
	}
	if id := safeGet(cols, colID); id != "" {
		if e.ID, err = strconv.ParseInt(id, 10, 64); err != nil {
			return core.Entry{}, fmt.Errorf("parse id %q: %w", id, err)
		}
	}
	return e, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// findID returns the 1-based row holding id in a single-column matrix,
// or 0 when absent.
func findID(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}
