package handler

import (
	"net/http"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
)

type StartWorkRequest struct {
	ProjectID *string `json:"project_id"`
	TaskID    *string `json:"task_id"`
	Memo      string  `json:"memo"`
}

type StartBreakRequest struct {
	Type model.BreakType `json:"type"`
}

func (h *Handler) TimerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Timer.Status(r.Context(), caller(r).EmployeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) StartWork(w http.ResponseWriter, r *http.Request) {
	var req StartWorkRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := h.Timer.StartWork(r.Context(), caller(r).EmployeeID, core.StartWorkInput{
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Memo:      req.Memo,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) StopWork(w http.ResponseWriter, r *http.Request) {
	session, err := h.Timer.StopWork(r.Context(), caller(r).EmployeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) StartBreak(w http.ResponseWriter, r *http.Request) {
	var req StartBreakRequest
	if err := decodeBody(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := h.Timer.StartBreak(r.Context(), caller(r).EmployeeID, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) StopBreak(w http.ResponseWriter, r *http.Request) {
	session, err := h.Timer.StopBreak(r.Context(), caller(r).EmployeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ActiveSessions lists every running timer. Admin only.
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := h.Timer.ActiveSessions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(sessions), "sessions": sessions})
}
