package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseVariant(t *testing.T) {
	cases := []struct {
		in   string
		want Variant
		ok   bool
	}{
		{"income", Income, true},
		{"Expenses", Expense, true},
		{" expense ", Expense, true},
		{"savings", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseVariant(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidVariant) {
			t.Fatalf("%q expected ErrInvalidVariant, got %v", tc.in, err)
		}
	}
}

func TestCategoriesAreCopies(t *testing.T) {
	cats := Income.Categories()
	cats[0] = "Mutated"
	if Income.Categories()[0] != "Salary" {
		t.Fatalf("category list leaked")
	}
	if !Expense.HasCategory("Groceries") || Expense.HasCategory("Salary") {
		t.Fatalf("unexpected expense category membership")
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		Variant:     Expense,
		Amount:      Money{Cents: 45000},
		Category:    "Housing",
		Counterpart: "Rent",
		Date:        NewDate(2023, 4, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(e *Entry)
		want   error
	}{
		{"zero amount", func(e *Entry) { e.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(e *Entry) { e.Amount = Money{Cents: -1} }, ErrInvalidAmount},
		{"income category on expense", func(e *Entry) { e.Category = "Salary" }, ErrInvalidCategory},
		{"blank counterpart", func(e *Entry) { e.Counterpart = "  " }, ErrEmptyCounterpart},
		{"long counterpart", func(e *Entry) { e.Counterpart = strings.Repeat("x", 201) }, ErrCounterpartLength},
		{"long notes", func(e *Entry) { e.Notes = strings.Repeat("x", 501) }, ErrNotesLength},
		{"zero date", func(e *Entry) { e.Date = time.Time{} }, ErrZeroDate},
		{"bad variant", func(e *Entry) { e.Variant = "loan" }, ErrInvalidVariant},
	}
	for _, tc := range cases {
		e := good
		tc.mutate(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSameDayIgnoresTime(t *testing.T) {
	a := time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)
	b := time.Date(2023, 4, 15, 23, 59, 59, 0, time.UTC)
	c := time.Date(2023, 4, 16, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatalf("expected same day")
	}
	if SameDay(b, c) {
		t.Fatalf("expected different days")
	}
}

func TestDefaultForm(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := DefaultForm(Expense, now)
	if f.Category != "Housing" || f.Amount != "" || f.Counterpart != "" || !f.Date.Equal(now) {
		t.Fatalf("unexpected defaults: %+v", f)
	}
	if DefaultForm(Income, now).Category != "Salary" {
		t.Fatalf("unexpected income default category")
	}
}
