package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
	"wallet/internal/store"
)

// Publisher announces stored entries to the sheet sync queue.
type Publisher interface {
	PublishEntrySync(ctx context.Context, v core.Variant, id, version int64) error
}

// NewEntry is the raw input of the entry form.
type NewEntry struct {
	Amount      string
	Category    string
	Counterpart string
	Date        *time.Time // nil means now
	Notes       string
}

// EntryService records and lists entries. Writes go to the store first;
// the sync message is best effort and never fails the request.
type EntryService struct {
	store     store.Store
	publisher Publisher
	now       func() time.Time
	logger    *log.StructuredLogger
	onAppend  []func(core.Variant)
}

// NewEntryService wires the store and an optional publisher (nil disables
// sheet sync).
func NewEntryService(st store.Store, pub Publisher) *EntryService {
	return &EntryService{
		store:     st,
		publisher: pub,
		now:       time.Now,
		logger:    log.NewStructuredLogger(log.NewComponentLogger(log.ComponentEntry)),
	}
}

// OnAppend registers a callback run after every stored entry.
func (s *EntryService) OnAppend(fn func(core.Variant)) {
	s.onAppend = append(s.onAppend, fn)
}

// Create validates the form, stores the entry and returns it together with
// the reset form for the variant.
func (s *EntryService) Create(ctx context.Context, v core.Variant, in NewEntry) (core.Entry, core.Form, error) {
	if !v.IsValid() {
		return core.Entry{}, core.Form{}, fmt.Errorf("%w: %q", core.ErrInvalidVariant, v)
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, core.Form{}, err
	}
	now := s.now()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	e := core.Entry{
		Variant:     v,
		Amount:      amount,
		Category:    in.Category,
		Counterpart: strings.TrimSpace(in.Counterpart),
		Date:        date,
		Notes:       strings.TrimSpace(in.Notes),
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, core.Form{}, err
	}

	stored, err := s.store.Append(ctx, e)
	if err != nil {
		return core.Entry{}, core.Form{}, fmt.Errorf("save %s: %w", v, err)
	}
	s.logger.LogEntryCreated(ctx, v.String(), stored.ID, stored.Amount.Cents, stored.Category)

	for _, fn := range s.onAppend {
		fn(v)
	}

	if s.publisher != nil {
		// version 1: entries are never edited
		if err := s.publisher.PublishEntrySync(ctx, v, stored.ID, 1); err != nil {
			s.logger.LogError(ctx, "Failed to publish sync message", err, log.ComponentEntry, log.OpSync,
				log.NewFields().WithEntry(v.String(), stored.ID, stored.Amount.Cents, stored.Category))
		}
	}

	return stored, core.DefaultForm(v, now), nil
}

// List returns the variant's entries matching c, in insertion order.
func (s *EntryService) List(ctx context.Context, v core.Variant, c ledger.Criteria) ([]core.Entry, error) {
	all, err := s.store.List(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", v, err)
	}
	return ledger.Filter(all, c), nil
}

// All returns both collections.
func (s *EntryService) All(ctx context.Context) (income, expenses []core.Entry, err error) {
	if income, err = s.store.List(ctx, core.Income); err != nil {
		return nil, nil, fmt.Errorf("list income: %w", err)
	}
	if expenses, err = s.store.List(ctx, core.Expense); err != nil {
		return nil, nil, fmt.Errorf("list expenses: %w", err)
	}
	return income, expenses, nil
}

// Close releases the store and publisher when they hold resources.
func (s *EntryService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && s.publisher != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
