package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Variant = "income"
	Expense Variant = "expense"
)

type (
	// Variant distinguishes the two entry collections. Each variant has its
	// own fixed category set and its own meaning for Counterpart.
	Variant string

	Entry struct {
		ID          int64     `json:"id"`
		Variant     Variant   `json:"variant"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Counterpart string    `json:"counterpart"` // source for income, reason for expense
		Date        time.Time `json:"date"`
		Notes       string    `json:"notes"`
	}

	// Form holds the values an entry form is reset to after a successful
	// submission.
	Form struct {
		Variant     Variant   `json:"variant"`
		Amount      string    `json:"amount"`
		Category    string    `json:"category"`
		Counterpart string    `json:"counterpart"`
		Date        time.Time `json:"date"`
		Notes       string    `json:"notes"`
	}
)

var (
	IncomeCategories = []string{"Salary", "Freelance", "Dividend", "Investment", "Gift", "Other"}

	ExpenseCategories = []string{
		"Housing", "Transportation", "Food", "Groceries", "Utilities", "Insurance",
		"Healthcare", "Savings", "Personal", "Entertainment", "Other",
	}
)

const (
	maxCounterpartLength = 200
	maxNotesLength       = 500
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidVariant    = errors.New("invalid variant")
	ErrEmptyCounterpart  = errors.New("empty counterpart")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrCounterpartLength = fmt.Errorf("counterpart too long (max %d characters)", maxCounterpartLength)
	ErrNotesLength       = fmt.Errorf("notes too long (max %d characters)", maxNotesLength)
)

// ParseVariant accepts the singular names and the plural collection names
// used in URLs ("expenses").
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "incomes":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
}

func (v Variant) IsValid() bool {
	return v == Income || v == Expense
}

func (v Variant) String() string {
	return string(v)
}

// Categories returns a copy of the variant's canonical category list.
func (v Variant) Categories() []string {
	switch v {
	case Income:
		return append([]string(nil), IncomeCategories...)
	case Expense:
		return append([]string(nil), ExpenseCategories...)
	default:
		return nil
	}
}

// HasCategory reports whether c belongs to the variant's category set.
func (v Variant) HasCategory(c string) bool {
	for _, cat := range v.Categories() {
		if cat == c {
			return true
		}
	}
	return false
}

// CounterpartLabel is the user-facing name of the free-text counterpart field.
func (v Variant) CounterpartLabel() string {
	if v == Income {
		return "source"
	}
	return "reason"
}

// DefaultForm returns the empty entry form for the variant.
func DefaultForm(v Variant, now time.Time) Form {
	category := ""
	if cats := v.Categories(); len(cats) > 0 {
		category = cats[0]
	}
	return Form{
		Variant:  v,
		Category: category,
		Date:     now,
	}
}

func (e Entry) Validate() error {
	if !e.Variant.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidVariant, e.Variant)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Variant.HasCategory(e.Category) {
		return fmt.Errorf("%w: %q is not a %s category", ErrInvalidCategory, e.Category, e.Variant)
	}
	if strings.TrimSpace(e.Counterpart) == "" {
		return ErrEmptyCounterpart
	}
	if len(e.Counterpart) > maxCounterpartLength {
		return ErrCounterpartLength
	}
	if len(e.Notes) > maxNotesLength {
		return ErrNotesLength
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// SameDay compares the calendar day of a and b, ignoring time of day.
// Each value is read in its own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NewDate creates a midnight UTC date from year, month, day
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
