package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
	"wallet/internal/services"
)

type variantKey struct{}

// withVariant resolves the {variant} URL segment; unknown collections are
// a 404.
func withVariant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := core.ParseVariant(chi.URLParam(r, "variant"))
		if err != nil {
			NotFoundError("unknown collection").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), variantKey{}, v)))
	})
}

func variantFrom(r *http.Request) core.Variant {
	v, _ := r.Context().Value(variantKey{}).(core.Variant)
	return v
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	v := variantFrom(r)
	q := r.URL.Query()

	day, err := queryDate(q, "date")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c := ledger.Criteria{
		SearchText: sanitizeInput(q.Get("q")),
		Category:   sanitizeInput(q.Get("category")),
		ExactDate:  day,
	}

	entries, err := s.entries.List(r.Context(), v, c)
	if err != nil {
		s.logger.LogError(r.Context(), "Failed to list entries", err, log.ComponentEntry, log.OpList,
			log.NewFields().WithEntry(v.String(), 0, 0, c.Category))
		InternalServerError("failed to load entries").Write(w)
		return
	}

	NewJSONResponse().Data(map[string]any{
		"variant":  v,
		"entries":  entries,
		"count":    len(entries),
		"empty":    len(entries) == 0,
		"filtered": !c.IsEmpty(),
	}).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	v := variantFrom(r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	req := EntryRequest{
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		Counterpart: p.First("counterpart", v.CounterpartLabel()),
		Date:        p.Get("date"),
		Notes:       p.Get("notes"),
	}
	if err := s.validator.Struct(req); err != nil {
		ValidationError("invalid entry", err).Write(w)
		return
	}

	in := services.NewEntry{
		Amount:      req.Amount,
		Category:    req.Category,
		Counterpart: req.Counterpart,
		Notes:       req.Notes,
	}
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			fieldError("invalid entry", "date", err.Error()).Write(w)
			return
		}
		in.Date = &d
	}

	entry, form, err := s.entries.Create(r.Context(), v, in)
	if err != nil {
		if field, msg, ok := entryFieldError(v, err); ok {
			fieldError("invalid entry", field, msg).NotifyError(msg).Write(w)
			return
		}
		s.logger.LogError(r.Context(), "Failed to create entry", err, log.ComponentEntry, log.OpCreate,
			log.NewFields().WithEntry(v.String(), 0, 0, req.Category))
		InternalServerError("failed to save entry").NotifyError("Could not save the entry").Write(w)
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Data(map[string]any{
		"entry": entry,
		"form":  form,
	}).NotifySuccess(createdMessage(v)).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	v := variantFrom(r)
	NewJSONResponse().Data(map[string]any{
		"variant":           v,
		"categories":        v.Categories(),
		"counterpart_label": v.CounterpartLabel(),
		"form":              core.DefaultForm(v, s.reports.Now()),
	}).Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	v := variantFrom(r)
	totals, err := s.reports.Totals(r.Context(), v)
	if err != nil {
		s.logger.LogError(r.Context(), "Failed to compute totals", err, log.ComponentReport, log.OpList, nil)
		InternalServerError("failed to compute totals").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"variant": v,
		"totals":  totals,
	}).Write(w)
}

// entryFieldError maps the entry validation errors to the offending form
// field.
func entryFieldError(v core.Variant, err error) (field, msg string, ok bool) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount", "Please enter a valid positive amount", true
	case errors.Is(err, core.ErrInvalidCategory):
		return "category", "Please choose one of: " + strings.Join(v.Categories(), ", "), true
	case errors.Is(err, core.ErrEmptyCounterpart):
		return "counterpart", "Please enter a " + v.CounterpartLabel(), true
	case errors.Is(err, core.ErrCounterpartLength):
		return "counterpart", core.ErrCounterpartLength.Error(), true
	case errors.Is(err, core.ErrNotesLength):
		return "notes", core.ErrNotesLength.Error(), true
	case errors.Is(err, core.ErrZeroDate):
		return "date", core.ErrZeroDate.Error(), true
	}
	return "", "", false
}

func fieldError(message, field, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Data(ErrorBody{
		Error:   message,
		Details: map[string]string{field: detail},
	})
}

func createdMessage(v core.Variant) string {
	if v == core.Income {
		return "Income recorded"
	}
	return "Expense recorded"
}
