package repository

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
)

// ErrOpenSessionExists is returned when creating a session would leave an
// employee with two open sessions of the same kind.
var ErrOpenSessionExists = errors.New("employee already has an open session of this kind")

// SessionFilter selects sessions by start time, half-open [StartFrom, StartTo).
// An empty EmployeeID matches every employee.
type SessionFilter struct {
	EmployeeID string
	StartFrom  time.Time
	StartTo    time.Time
}

// OvertimeFilter selects overtime rows with From <= date <= To.
type OvertimeFilter struct {
	EmployeeID string
	From       clock.Date
	To         clock.Date
}

// Repository contract
type Repository interface {
	// WithEmployeeLock runs fn while holding the employee's timer lock. Repository
	// calls made with the context handed to fn join the same unit of work.
	WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) error

	GetAttendance(ctx context.Context, employeeID string, date clock.Date) (*model.AttendanceRecord, error)
	SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	ListAttendance(ctx context.Context, from, to clock.Date) ([]model.AttendanceRecord, error)

	FindOpenWorkSession(ctx context.Context, employeeID string) (*model.WorkSession, error)
	FindOpenBreakSession(ctx context.Context, employeeID string) (*model.BreakSession, error)
	CreateWorkSession(ctx context.Context, s *model.WorkSession) error
	CreateBreakSession(ctx context.Context, s *model.BreakSession) error
	CloseWorkSession(ctx context.Context, s *model.WorkSession) error
	CloseBreakSession(ctx context.Context, s *model.BreakSession) error
	ListWorkSessions(ctx context.Context, f SessionFilter) ([]model.WorkSession, error)
	ListBreakSessions(ctx context.Context, f SessionFilter) ([]model.BreakSession, error)
	ListOpenWorkSessions(ctx context.Context) ([]model.WorkSession, error)
	ListOpenBreakSessions(ctx context.Context) ([]model.BreakSession, error)

	GetOvertime(ctx context.Context, employeeID string, date clock.Date) (*model.Overtime, error)
	UpsertOvertime(ctx context.Context, o *model.Overtime) error
	DeleteOvertime(ctx context.Context, employeeID string, date clock.Date) (bool, error)
	ListOvertime(ctx context.Context, f OvertimeFilter) ([]model.Overtime, error)
}
