package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wallet/internal/cache"
	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
)

// EntrySource yields both collections.
type EntrySource interface {
	All(ctx context.Context) (income, expenses []core.Entry, err error)
}

// Snapshot is both collections as read at one point in time.
type Snapshot struct {
	Income   []core.Entry
	Expenses []core.Entry
}

const snapshotKey = "entries"

// ReportService computes the dashboard views from a cached snapshot of the
// store. Concurrent misses of one generation share one store read; a read
// started before an invalidation is never shared with or cached for later
// callers.
type ReportService struct {
	source EntrySource
	cache  *cache.LRUCache[Snapshot]
	group  singleflight.Group
	now    func() time.Time
	logger *log.Logger

	mu  sync.Mutex
	gen uint64 // bumped on every invalidation
}

func NewReportService(source EntrySource, ttl time.Duration) *ReportService {
	return &ReportService{
		source: source,
		cache:  cache.NewLRUCache[Snapshot](1, ttl),
		now:    time.Now,
		logger: log.NewComponentLogger(log.ComponentReport),
	}
}

// Cache exposes the snapshot cache for registration with a cache.Manager.
func (s *ReportService) Cache() cache.Cleaner { return s.cache }

// Invalidate drops the cached snapshot. It matches the EntryService
// OnAppend callback signature.
func (s *ReportService) Invalidate(core.Variant) {
	s.mu.Lock()
	old := s.gen
	s.gen++
	s.cache.Clear()
	s.mu.Unlock()
	s.group.Forget(flightKey(old))
}

func flightKey(gen uint64) string {
	return snapshotKey + ":" + strconv.FormatUint(gen, 10)
}

// Snapshot returns the cached collections, reading the store on a miss.
func (s *ReportService) Snapshot(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		return snap, nil
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	v, err, shared := s.group.Do(flightKey(gen), func() (any, error) {
		income, expenses, err := s.source.All(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		snap := Snapshot{Income: income, Expenses: expenses}
		// a write during the read makes this snapshot stale
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Set(snapshotKey, snap)
		}
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Shared snapshot load")
	}
	return v.(Snapshot), nil
}

// Analytics is the analytics page for one window.
type Analytics struct {
	Window        ledger.Window        `json:"window"`
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	Summary       core.Summary         `json:"summary"`
	Series        []ledger.DailyPoint  `json:"series"`
	ExpenseTotals []core.CategoryTotal `json:"expense_by_category"`
	IncomeTotals  []core.CategoryTotal `json:"income_by_category"`
}

func (s *ReportService) Analytics(ctx context.Context, w ledger.Window) (Analytics, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Analytics{}, err
	}
	now := s.now()
	from, to := w.Bounds(now)
	return Analytics{
		Window:        w,
		From:          from,
		To:            to,
		Summary:       ledger.Summarize(snap.Income, snap.Expenses, w, now),
		Series:        ledger.DailySeries(snap.Income, snap.Expenses, w, now),
		ExpenseTotals: ledger.CategoryTotals(ledger.InWindow(snap.Expenses, w, now), core.Expense.Categories()),
		IncomeTotals:  ledger.CategoryTotals(ledger.InWindow(snap.Income, w, now), core.Income.Categories()),
	}, nil
}

func (s *ReportService) Dashboard(ctx context.Context) (ledger.Overview, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ledger.Overview{}, err
	}
	return ledger.BuildOverview(snap.Income, snap.Expenses, s.now()), nil
}

// Totals returns the per-category chart data of all entries of v.
func (s *ReportService) Totals(ctx context.Context, v core.Variant) ([]core.CategoryTotal, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries := snap.Expenses
	if v == core.Income {
		entries = snap.Income
	}
	return ledger.CategoryTotals(entries, v.Categories()), nil
}

// CalendarView is the calendar page for a navigation state.
type CalendarView struct {
	State    ledger.CalendarState `json:"state"`
	Days     []ledger.DayMarker   `json:"days"`
	Selected *ledger.DayEntries   `json:"selected,omitempty"`
}

func (s *ReportService) Calendar(ctx context.Context, state ledger.CalendarState) (CalendarView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return CalendarView{}, err
	}
	view := CalendarView{
		State: state,
		Days:  ledger.MonthGrid(snap.Income, snap.Expenses, state.Current),
	}
	if state.Selected != nil {
		day := ledger.EntriesOnDate(snap.Income, snap.Expenses, *state.Selected)
		view.Selected = &day
	}
	return view, nil
}

// Now is the clock the reports are computed against.
func (s *ReportService) Now() time.Time { return s.now() }
