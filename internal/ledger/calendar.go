package ledger

import (
	"time"

	"wallet/internal/core"
)

// DayEntries is the detail panel content for one calendar day.
type DayEntries struct {
	Income   []core.Entry `json:"income"`
	Expenses []core.Entry `json:"expenses"`
}

// IsEmpty reports a day without any transactions.
func (d DayEntries) IsEmpty() bool {
	return len(d.Income) == 0 && len(d.Expenses) == 0
}

// DayMarker describes one cell of the month grid.
type DayMarker struct {
	Date         time.Time `json:"date"`
	HasIncome    bool      `json:"has_income"`
	HasExpense   bool      `json:"has_expense"`
	IncomeCount  int       `json:"income_count"`
	ExpenseCount int       `json:"expense_count"`
}

// EntriesOnDate returns the entries of both collections that fall on day.
func EntriesOnDate(income, expenses []core.Entry, day time.Time) DayEntries {
	on := Criteria{ExactDate: &day}
	return DayEntries{
		Income:   Filter(income, on),
		Expenses: Filter(expenses, on),
	}
}

// MonthGrid returns one marker per day of the month containing month.
func MonthGrid(income, expenses []core.Entry, month time.Time) []DayMarker {
	first := FirstOfMonth(month)
	days := DaysInMonth(first)

	markers := make([]DayMarker, days)
	for i := range markers {
		markers[i].Date = first.AddDate(0, 0, i)
	}
	count := func(entries []core.Entry, inc func(m *DayMarker)) {
		for _, e := range entries {
			y, m, d := e.Date.Date()
			if y != first.Year() || m != first.Month() {
				continue
			}
			inc(&markers[d-1])
		}
	}
	count(income, func(m *DayMarker) { m.IncomeCount++; m.HasIncome = true })
	count(expenses, func(m *DayMarker) { m.ExpenseCount++; m.HasExpense = true })
	return markers
}

// CalendarState is the navigation state of the calendar view. Current is
// always the first day of the displayed month and moves independently of
// Selected.
type CalendarState struct {
	Current  time.Time  `json:"current_month"`
	Selected *time.Time `json:"selected_date,omitempty"`
}

// NewCalendarState starts on today's month with today selected.
func NewCalendarState(now time.Time) CalendarState {
	return CalendarState{}.Today(now)
}

// PrevMonth shows the previous calendar month.
func (s CalendarState) PrevMonth() CalendarState {
	s.Current = FirstOfMonth(s.Current).AddDate(0, -1, 0)
	return s
}

// NextMonth shows the next calendar month.
func (s CalendarState) NextMonth() CalendarState {
	s.Current = FirstOfMonth(s.Current).AddDate(0, 1, 0)
	return s
}

// Today shows the current month and selects today.
func (s CalendarState) Today(now time.Time) CalendarState {
	today := core.StartOfDay(now)
	s.Current = FirstOfMonth(today)
	s.Selected = &today
	return s
}

// Select changes the selected day without moving the displayed month.
func (s CalendarState) Select(day time.Time) CalendarState {
	d := core.StartOfDay(day)
	s.Selected = &d
	return s
}

// FirstOfMonth returns midnight of the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days of t's month.
func DaysInMonth(t time.Time) int {
	return FirstOfMonth(t).AddDate(0, 1, -1).Day()
}
