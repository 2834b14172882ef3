package handler

import (
	"net/http"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"github.com/rs/zerolog/log"
)

type OvertimeSyncRequest struct {
	Date       string `json:"date"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	EmployeeID string `json:"employee_id"`
	Async      bool   `json:"async"`
}

// SyncOvertime recomputes overtime for a date or a month. Employees sync
// themselves; admins may name an employee or omit it to sync everyone.
func (h *Handler) SyncOvertime(w http.ResponseWriter, r *http.Request) {
	var req OvertimeSyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c := caller(r)
	employeeID := req.EmployeeID
	switch {
	case employeeID != "" && employeeID != c.EmployeeID && !c.IsAdmin():
		writeError(w, r, errForbidden)
		return
	case employeeID == "" && !c.IsAdmin():
		employeeID = c.EmployeeID
	}
	verify := employeeID != "" && employeeID != c.EmployeeID

	syncReq, err := h.syncWindow(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	syncReq.EmployeeID = employeeID
	syncReq.VerifyEmployee = verify

	if req.Async {
		msg := messaging.OvertimeSyncRequest{
			EmployeeID:  employeeID,
			RequestedBy: c.EmployeeID,
			RequestedAt: h.now().UTC(),
		}
		if req.Date != "" {
			msg.Date = syncReq.From.String()
		} else {
			msg.Month, msg.Year = int(syncReq.From.Month), syncReq.From.Year
		}
		if err := h.Publisher.PublishOvertimeSync(r.Context(), msg); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Overtime sync queued"})
		return
	}

	updated, err := h.Overtime.SyncRange(r.Context(), syncReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int("updated", updated).Msg("Overtime synced")
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
		"from":    syncReq.From,
		"to":      syncReq.To,
	})
}

func (h *Handler) syncWindow(req OvertimeSyncRequest) (core.SyncRequest, error) {
	var out core.SyncRequest
	switch {
	case req.Date != "":
		d, err := clock.ParseDate(req.Date)
		if err != nil {
			return out, model.ErrInvalidDateRange
		}
		out.From, out.To = d, d
	case req.Month != 0 || req.Year != 0:
		if req.Month < 1 || req.Month > 12 || req.Year == 0 {
			return out, model.ErrInvalidDateRange
		}
		out.From, out.To = clock.MonthRange(req.Year, time.Month(req.Month))
	default:
		today := h.Clock.Today(h.now())
		out.From, out.To = clock.MonthRange(today.Year, today.Month)
	}
	return out, nil
}
