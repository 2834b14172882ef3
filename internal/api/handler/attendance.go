package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"github.com/gorilla/mux"
)

type CheckInOutRequest struct {
	Action      string `json:"action"`
	WorkingFrom string `json:"working_from"`
}

// CheckInOut checks the caller in or out depending on the requested action.
func (h *Handler) CheckInOut(w http.ResponseWriter, r *http.Request) {
	var req CheckInOutRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	employeeID := caller(r).EmployeeID
	in := core.CheckInInput{IP: clientIP(r), WorkingFrom: req.WorkingFrom}

	var (
		res *model.CheckInOutResult
		err error
	)
	switch strings.ToLower(req.Action) {
	case "in":
		res, err = h.Timer.CheckIn(r.Context(), employeeID, in)
	case "out":
		res, err = h.Timer.CheckOut(r.Context(), employeeID, in)
	default:
		writeMessage(w, http.StatusBadRequest, "action must be one of: in, out")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AttendanceStatus returns the caller's check-in widget for today.
func (h *Handler) AttendanceStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Timer.AttendanceStatus(r.Context(), caller(r).EmployeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MonthlySummary counts attendance statuses across active employees.
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}

	today := h.Clock.Today(h.now())
	year, month := today.Year, today.Month
	q := r.URL.Query()
	if raw := q.Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, model.ErrInvalidDateRange)
			return
		}
		year = v
	}
	if raw := q.Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, model.ErrInvalidDateRange)
			return
		}
		month = time.Month(v)
	}

	summary, err := h.Reports.MonthlySummary(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type ExternalStatusRequest struct {
	Date   string                 `json:"date"`
	Status model.AttendanceStatus `json:"status"`
}

// RecordExternalStatus lets HR mark a day as leave or holiday.
func (h *Handler) RecordExternalStatus(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}

	var req ExternalStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := clock.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, model.ErrInvalidDateRange)
		return
	}

	rec, err := h.Timer.RecordExternalStatus(r.Context(), mux.Vars(r)["employeeId"], date, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
