package model

import (
	"time"

	"attendance.service/internal/clock"
)

// DailyTotals aggregates one employee's sessions for one local date.
// FirstStart and LastEnd fall back to the attendance clock-in/out when no
// session provides them. FirstWorkStart only ever comes from a work session.
type DailyTotals struct {
	EmployeeID        string     `json:"employee_id"`
	Date              clock.Date `json:"date"`
	ProductiveSeconds int64      `json:"productive_seconds"`
	BreakSeconds      int64      `json:"break_seconds"`
	SupportSeconds    int64      `json:"support_seconds"`
	FirstStart        *time.Time `json:"first_start,omitempty"`
	FirstWorkStart    *time.Time `json:"first_work_start,omitempty"`
	LastEnd           *time.Time `json:"last_end,omitempty"`
	HasOpenSession    bool       `json:"has_open_session"`
}

// TimerStatus is the live view of an employee's timer.
type TimerStatus struct {
	IsWorking           bool          `json:"is_working"`
	IsOnBreak           bool          `json:"is_on_break"`
	ActiveType          *ActivityType `json:"active_type"`
	CurrentWorkSession  *WorkSession  `json:"current_work_session"`
	CurrentBreakSession *BreakSession `json:"current_break_session"`
	TodayTotalWork      string        `json:"today_total_work"`
	TodayTotalBreak     string        `json:"today_total_break"`
	TodayTotalSupport   string        `json:"today_total_support"`
	TodayWorkSeconds    int64         `json:"today_total_work_seconds"`
	TodayBreakSeconds   int64         `json:"today_total_break_seconds"`
	TodaySupportSeconds int64         `json:"today_total_support_seconds"`
	TargetHours         string        `json:"target_hours"`
	RemainingHours      string        `json:"remaining_hours"`
}

// AttendanceView is the check-in widget for the current local day.
type AttendanceView struct {
	Date            clock.Date       `json:"date"`
	IsCheckedIn     bool             `json:"is_checked_in"`
	IsCheckedOut    bool             `json:"is_checked_out"`
	Status          AttendanceStatus `json:"status"`
	ClockIn         *string          `json:"clock_in"`
	ClockOut        *string          `json:"clock_out"`
	WorkingFrom     string           `json:"working_from,omitempty"`
	IsLate          bool             `json:"is_late"`
	IsHalfDay       bool             `json:"is_half_day"`
	ProductiveHours string           `json:"productive_hours"`
	CanCheckIn      bool             `json:"can_check_in"`
	CanCheckOut     bool             `json:"can_check_out"`
}

// CheckInOutResult is returned by check-in and check-out.
type CheckInOutResult struct {
	Message string            `json:"message"`
	Status  AttendanceStatus  `json:"status"`
	Time    string            `json:"time"`
	Record  *AttendanceRecord `json:"record"`
}

// ActiveSession is one open timer in the admin overview.
type ActiveSession struct {
	EmployeeID     string    `json:"employee_id"`
	SessionID      string    `json:"session_id"`
	Kind           string    `json:"kind"`
	ProjectID      *string   `json:"project_id,omitempty"`
	TaskID         *string   `json:"task_id,omitempty"`
	Memo           string    `json:"memo,omitempty"`
	StartTime      time.Time `json:"start_time"`
	StartedAt      string    `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// MonthlySummary counts attendance statuses across employees for one month.
type MonthlySummary struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	Present   int        `json:"present"`
	Late      int        `json:"late"`
	Absent    int        `json:"absent"`
	HalfDay   int        `json:"half_day"`
	Leave     int        `json:"leave"`
	Holiday   int        `json:"holiday"`
	Days      int        `json:"days"`
	Employees int        `json:"employees"`
}

// OvertimeResult describes what a single-day sync did.
type OvertimeResult struct {
	EmployeeID      string     `json:"employee_id"`
	Date            clock.Date `json:"date"`
	ProductiveHours float64    `json:"productive_hours"`
	Overtime        *Overtime  `json:"overtime,omitempty"`
	Previous        *Overtime  `json:"previous,omitempty"`
	Removed         bool       `json:"removed"`
}
