package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/api/middleware"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
// Everything under /api/v1 requires a bearer token.
func NewRouter(h *handler.Handler, auth middleware.Auth) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Wrap)

	attendance := api.PathPrefix("/attendance").Subrouter()
	attendance.HandleFunc("/check-in-out", h.CheckInOut).Methods(http.MethodPost)
	attendance.HandleFunc("/status", h.AttendanceStatus).Methods(http.MethodGet)
	attendance.HandleFunc("/summary", h.MonthlySummary).Methods(http.MethodGet)
	attendance.HandleFunc("/{employeeId}/external-status", h.RecordExternalStatus).Methods(http.MethodPost)

	timer := api.PathPrefix("/timer").Subrouter()
	timer.HandleFunc("/status", h.TimerStatus).Methods(http.MethodGet)
	timer.HandleFunc("/start-work", h.StartWork).Methods(http.MethodPost)
	timer.HandleFunc("/stop-work", h.StopWork).Methods(http.MethodPost)
	timer.HandleFunc("/start-break", h.StartBreak).Methods(http.MethodPost)
	timer.HandleFunc("/stop-break", h.StopBreak).Methods(http.MethodPost)
	timer.HandleFunc("/active", h.ActiveSessions).Methods(http.MethodGet)

	reports := api.PathPrefix("/reports").Subrouter()
	reports.HandleFunc("/daily", h.DailyReport).Methods(http.MethodGet)
	reports.HandleFunc("/range", h.RangeReport).Methods(http.MethodGet)

	api.HandleFunc("/overtime/sync", h.SyncOvertime).Methods(http.MethodPost)

	return r
}
