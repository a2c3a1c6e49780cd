package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet/internal/core"
)

// Window is the period summary figures are computed over.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

var hundred = decimal.NewFromInt(100)

// ParseWindow maps a window name to a Window. Unknown names fall back to
// the week window.
func ParseWindow(s string) Window {
	switch Window(strings.ToLower(strings.TrimSpace(s))) {
	case WindowDay:
		return WindowDay
	case WindowMonth:
		return WindowMonth
	default:
		return WindowWeek
	}
}

// Days is the number of calendar days the window spans.
func (w Window) Days() int {
	switch w {
	case WindowDay:
		return 1
	case WindowMonth:
		return 30
	default:
		return 7
	}
}

// Bounds returns the half-open interval [from, to) of the window ending on
// now's calendar day. Both ends are calendar days keyed as UTC midnight,
// see calendarDay.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	to = calendarDay(now).AddDate(0, 0, 1)
	from = to.AddDate(0, 0, -w.Days())
	return from, to
}

// calendarDay keys t by the year, month and day it reads in its own
// location, the same reading core.SameDay uses. Entries dated 2023-04-15 at
// midnight UTC then belong to April 15 whatever zone now is in.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InWindow returns the entries dated inside the window, in source order.
func InWindow(entries []core.Entry, w Window, now time.Time) []core.Entry {
	from, to := w.Bounds(now)
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if d := calendarDay(e.Date); !d.Before(from) && d.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

// Summarize computes the analytics cards for the window ending today.
func Summarize(income, expenses []core.Entry, w Window, now time.Time) core.Summary {
	return SummaryOf(Total(InWindow(income, w, now)), Total(InWindow(expenses, w, now)))
}

// SummaryOf derives net savings and savings rate from two totals. The rate
// is a percentage rounded to 2 decimals, and exactly zero without income.
func SummaryOf(totalIncome, totalExpense core.Money) core.Summary {
	net := totalIncome.Sub(totalExpense)
	rate := decimal.Zero
	if totalIncome.Cents > 0 {
		rate = net.Decimal().Div(totalIncome.Decimal()).Mul(hundred).Round(2)
	}
	return core.Summary{
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		NetSavings:   net,
		SavingsRate:  rate,
	}
}

// DailyPoint is one day of the income/expense trend chart.
type DailyPoint struct {
	Date    time.Time  `json:"date"`
	Label   string     `json:"label"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// DailySeries returns one point per day of the window, oldest first.
func DailySeries(income, expenses []core.Entry, w Window, now time.Time) []DailyPoint {
	from, _ := w.Bounds(now)
	points := make([]DailyPoint, w.Days())
	for i := range points {
		d := from.AddDate(0, 0, i)
		points[i] = DailyPoint{Date: d, Label: d.Format("Jan 2")}
	}
	add := func(entries []core.Entry, into func(p *DailyPoint, m core.Money)) {
		for _, e := range InWindow(entries, w, now) {
			idx := dayIndex(from, e.Date)
			if idx >= 0 && idx < len(points) {
				into(&points[idx], e.Amount)
			}
		}
	}
	add(income, func(p *DailyPoint, m core.Money) { p.Income = p.Income.Add(m) })
	add(expenses, func(p *DailyPoint, m core.Money) { p.Expense = p.Expense.Add(m) })
	return points
}

// dayIndex counts calendar days from from to t.
func dayIndex(from, t time.Time) int {
	return int(calendarDay(t).Sub(calendarDay(from)).Hours() / 24)
}

// Overview is the dashboard: all-time balance, this month's cards and the
// last seven days by weekday.
type Overview struct {
	Balance      core.Money   `json:"total_balance"`
	Month        string       `json:"month"`
	MonthSummary core.Summary `json:"month_summary"`
	Week         []DailyPoint `json:"week"`
}

// BuildOverview computes the dashboard for the month containing now.
func BuildOverview(income, expenses []core.Entry, now time.Time) Overview {
	first := FirstOfMonth(now)
	inMonth := func(entries []core.Entry) core.Money {
		var total core.Money
		for _, e := range entries {
			if y, m, _ := e.Date.Date(); y == first.Year() && m == first.Month() {
				total = total.Add(e.Amount)
			}
		}
		return total
	}

	week := DailySeries(income, expenses, WindowWeek, now)
	for i := range week {
		week[i].Label = week[i].Date.Format("Mon")
	}

	return Overview{
		Balance:      Total(income).Sub(Total(expenses)),
		Month:        fmt.Sprintf("%04d-%02d", first.Year(), int(first.Month())),
		MonthSummary: SummaryOf(inMonth(income), inMonth(expenses)),
		Week:         week,
	}
}
