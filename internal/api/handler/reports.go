package handler

import (
	"net/http"

	"attendance.service/internal/core/model"
)

// DailyReport returns one employee's totals for a date, defaulting to the
// caller and today.
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	employeeID, err := targetEmployee(r, q.Get("employee_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseOptionalDate(q.Get("date"), h.Clock.Today(h.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := h.Reports.DailyTotals(r.Context(), employeeID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// RangeReport returns per-employee daily totals across a date range. Admin only.
func (h *Handler) RangeReport(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, r, model.ErrInvalidDateRange)
		return
	}
	start, err := parseOptionalDate(q.Get("start"), h.Clock.Today(h.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseOptionalDate(q.Get("end"), start)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := h.Reports.RangeTotals(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"start": start, "end": end, "days": rows})
}
