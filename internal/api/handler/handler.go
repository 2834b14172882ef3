package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"attendance.service/internal/api/middleware"
	"attendance.service/internal/clock"
	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/directory"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// Handler serves the attendance, timer, report and overtime routes.
type Handler struct {
	Timer     *core.TimerService
	Reports   *core.AggregationEngine
	Overtime  *core.OvertimeCalculator
	Publisher messaging.Publisher
	Clock     *clock.Resolver
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var errForbidden = errors.New("insufficient permissions")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes. Anything unknown is logged
// and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotCheckedIn),
		errors.Is(err, model.ErrAlreadyCheckedOut),
		errors.Is(err, model.ErrNoActiveWorkSession),
		errors.Is(err, model.ErrNoActiveBreak),
		errors.Is(err, model.ErrInvalidBreakType),
		errors.Is(err, model.ErrInvalidDateRange),
		errors.Is(err, model.ErrInvalidStatus):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrEmployeeNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrOpenSessionExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrUnavailable):
		log.Ctx(r.Context()).Error().Err(err).Msg("Directory unavailable")
		writeMessage(w, http.StatusBadGateway, "employee directory unavailable")
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// caller returns the authenticated identity. The auth middleware guarantees it.
func caller(r *http.Request) *middleware.Claims {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return claims
}

// targetEmployee resolves whose data a request addresses. Only admins may
// name someone other than themselves.
func targetEmployee(r *http.Request, requested string) (string, error) {
	c := caller(r)
	if c == nil {
		return "", errForbidden
	}
	if requested == "" || requested == c.EmployeeID {
		return c.EmployeeID, nil
	}
	if !c.IsAdmin() {
		return "", errForbidden
	}
	return requested, nil
}

func requireAdmin(r *http.Request) error {
	if !caller(r).IsAdmin() {
		return errForbidden
	}
	return nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseOptionalDate(raw string, fallback clock.Date) (clock.Date, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return clock.Date{}, model.ErrInvalidDateRange
	}
	return d, nil
}
