package memory

import (
	"context"
	"fmt"
	"sync"

	"wallet/internal/core"
	"wallet/internal/store"
)

// Store keeps both collections in process. Ids are assigned per variant
// starting at 1 and never reused.
type Store struct {
	mu     sync.Mutex
	items  map[core.Variant][]core.Entry
	nextID map[core.Variant]int64
}

func New() *Store {
	return &Store{
		items:  map[core.Variant][]core.Entry{},
		nextID: map[core.Variant]int64{core.Income: 1, core.Expense: 1},
	}
}

// NewSeeded returns a store holding the demo entries.
func NewSeeded() *Store {
	s := New()
	for _, e := range SeedEntries() {
		if _, err := s.Append(context.Background(), e); err != nil {
			panic(fmt.Sprintf("invalid seed entry %+v: %v", e, err))
		}
	}
	return s
}

// Append stores the entry under the next id of its variant.
func (s *Store) Append(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID[e.Variant]
	s.nextID[e.Variant]++
	s.items[e.Variant] = append(s.items[e.Variant], e)
	return e, nil
}

func (s *Store) List(_ context.Context, v core.Variant) ([]core.Entry, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidVariant, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry{}, s.items[v]...), nil
}

func (s *Store) Get(_ context.Context, v core.Variant, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items[v] {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Entry{}, fmt.Errorf("%s %d: %w", v, id, store.ErrNotFound)
}

// SeedEntries is the demo data set: three incomes and four expenses from
// April 2023.
func SeedEntries() []core.Entry {
	amount := func(s string) core.Money {
		m, err := core.ParseAmount(s)
		if err != nil {
			panic(err)
		}
		return m
	}
	return []core.Entry{
		{Variant: core.Income, Amount: amount("2500"), Category: "Salary", Counterpart: "Company ABC", Date: core.NewDate(2023, 4, 15), Notes: "Monthly salary"},
		{Variant: core.Income, Amount: amount("150"), Category: "Freelance", Counterpart: "Design project", Date: core.NewDate(2023, 4, 20), Notes: "Logo design"},
		{Variant: core.Income, Amount: amount("75"), Category: "Dividend", Counterpart: "Stock XYZ", Date: core.NewDate(2023, 4, 25), Notes: "Quarterly dividend"},
		{Variant: core.Expense, Amount: amount("450"), Category: "Housing", Counterpart: "Rent", Date: core.NewDate(2023, 4, 1), Notes: "Monthly rent"},
		{Variant: core.Expense, Amount: amount("85"), Category: "Groceries", Counterpart: "Supermarket", Date: core.NewDate(2023, 4, 8), Notes: "Weekly groceries"},
		{Variant: core.Expense, Amount: amount("35"), Category: "Utilities", Counterpart: "Electricity", Date: core.NewDate(2023, 4, 15), Notes: "Monthly bill"},
		{Variant: core.Expense, Amount: amount("25"), Category: "Transportation", Counterpart: "Gas", Date: core.NewDate(2023, 4, 10), Notes: "Car refuel"},
	}
}
