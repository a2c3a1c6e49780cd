package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wallet/internal/export"
	"wallet/internal/ledger"
	"wallet/internal/log"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	window := ledger.ParseWindow(r.URL.Query().Get("window"))
	a, err := s.reports.Analytics(r.Context(), window)
	if err != nil {
		s.logger.LogError(r.Context(), "Failed to compute analytics", err, log.ComponentReport, "analytics",
			log.LogFields{log.FieldWindow: string(window)})
		InternalServerError("failed to compute analytics").Write(w)
		return
	}
	NewJSONResponse().Data(a).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ov, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.logger.LogError(r.Context(), "Failed to compute dashboard", err, log.ComponentReport, "dashboard", nil)
		InternalServerError("failed to compute dashboard").Write(w)
		return
	}
	NewJSONResponse().Data(ov).Write(w)
}

// handleCalendar applies one navigation action to the state described by
// the month and selected parameters. Without either, the state starts on
// today.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.reports.Now()

	month, err := queryMonth(q, "month")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	selected, err := queryDate(q, "selected")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	state := ledger.NewCalendarState(now)
	if month != nil || selected != nil {
		state = ledger.CalendarState{Selected: selected}
		switch {
		case month != nil:
			state.Current = ledger.FirstOfMonth(*month)
		default:
			state.Current = ledger.FirstOfMonth(*selected)
		}
	}

	switch action := strings.ToLower(strings.TrimSpace(q.Get("action"))); action {
	case "":
	case "prev":
		state = state.PrevMonth()
	case "next":
		state = state.NextMonth()
	case "today":
		state = state.Today(now)
	case "select":
		day, err := queryDate(q, "day")
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		if day == nil {
			fieldError("invalid calendar action", "day", "is required for select").Write(w)
			return
		}
		state = state.Select(*day)
	default:
		fieldError("invalid calendar action", "action", "must be one of: prev next today select").Write(w)
		return
	}

	view, err := s.reports.Calendar(r.Context(), state)
	if err != nil {
		s.logger.LogError(r.Context(), "Failed to build calendar", err, log.ComponentReport, "calendar", nil)
		InternalServerError("failed to build calendar").Write(w)
		return
	}
	NewJSONResponse().Data(view).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	income, expenses, err := s.entries.All(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load entries for export", err, log.ComponentHTTP, log.OpExport, nil)
		InternalServerError("failed to export entries").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, income, expenses); err != nil {
		s.logger.LogError(ctx, "Failed to build workbook", err, log.ComponentHTTP, log.OpExport, nil)
		InternalServerError("failed to export entries").Write(w)
		return
	}

	filename := fmt.Sprintf("wallet-%s.xlsx", s.reports.Now().Format(dateLayout))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	log.FromContext(ctx).InfoContext(ctx, "Entries exported",
		log.FieldOperation, log.OpExport, "income", len(income), "expenses", len(expenses))
}
