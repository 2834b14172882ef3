package model

import (
	"time"

	"attendance.service/internal/clock"
)

// AttendanceStatus is the derived state of an employee's day.
type AttendanceStatus string

const (
	StatusPresent     AttendanceStatus = "present"
	StatusAbsent      AttendanceStatus = "absent"
	StatusLate        AttendanceStatus = "late"
	StatusHalfDay     AttendanceStatus = "half_day"
	StatusHalfDayLate AttendanceStatus = "half_day_late"
	StatusLeave       AttendanceStatus = "leave"
	StatusHoliday     AttendanceStatus = "holiday"
)

// BreakType distinguishes a personal break from time spent on support.
type BreakType string

const (
	BreakTypeBreak   BreakType = "break"
	BreakTypeSupport BreakType = "support"
)

// ActivityType names what the timer is currently running: work, or one of
// the break types.
type ActivityType string

const ActivityWork ActivityType = "work"

// Valid reports whether t is a known break type.
func (t BreakType) Valid() bool {
	return t == BreakTypeBreak || t == BreakTypeSupport
}

const DefaultWorkingFrom = "Office"

// AttendanceRecord is one employee's attendance for one local date.
// ClockIn and ClockOut are UTC instants.
type AttendanceRecord struct {
	EmployeeID  string           `json:"employee_id"`
	Date        clock.Date       `json:"date"`
	ClockIn     *time.Time       `json:"clock_in,omitempty"`
	ClockOut    *time.Time       `json:"clock_out,omitempty"`
	ClockInIP   string           `json:"clock_in_ip,omitempty"`
	ClockOutIP  string           `json:"clock_out_ip,omitempty"`
	IsLate      bool             `json:"is_late"`
	IsHalfDay   bool             `json:"is_half_day"`
	WorkingFrom string           `json:"working_from"`
	Status      AttendanceStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CheckedIn is true between a clock-in and its clock-out.
func (a *AttendanceRecord) CheckedIn() bool {
	return a != nil && a.ClockIn != nil && a.ClockOut == nil
}

// WorkSession is time logged against an optional project and task.
type WorkSession struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	ProjectID       *string    `json:"project_id,omitempty"`
	TaskID          *string    `json:"task_id,omitempty"`
	Memo            string     `json:"memo"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

func (s *WorkSession) IsOpen() bool {
	return s.EndTime == nil
}

// Close ends the session and fixes its duration.
func (s *WorkSession) Close(end time.Time) {
	end = clampEnd(s.StartTime, end)
	d := int64(end.Sub(s.StartTime) / time.Second)
	s.EndTime = &end
	s.DurationSeconds = &d
}

// Elapsed is the stored duration for a closed session, or now - start for an open one.
func (s *WorkSession) Elapsed(now time.Time) time.Duration {
	return elapsed(s.StartTime, s.EndTime, now)
}

// BreakSession is a break or support interval.
type BreakSession struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	Type            BreakType  `json:"type"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

func (s *BreakSession) IsOpen() bool {
	return s.EndTime == nil
}

func (s *BreakSession) Close(end time.Time) {
	end = clampEnd(s.StartTime, end)
	d := int64(end.Sub(s.StartTime) / time.Second)
	s.EndTime = &end
	s.DurationSeconds = &d
}

func (s *BreakSession) Elapsed(now time.Time) time.Duration {
	return elapsed(s.StartTime, s.EndTime, now)
}

// Overtime is productive time beyond the daily baseline for one employee and date.
type Overtime struct {
	EmployeeID string     `json:"employee_id"`
	Date       clock.Date `json:"date"`
	Hours      float64    `json:"hours"`
	Project    string     `json:"project"`
	Effort     string     `json:"effort"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func clampEnd(start, end time.Time) time.Time {
	if end.Before(start) {
		return start
	}
	return end
}

func elapsed(start time.Time, end *time.Time, now time.Time) time.Duration {
	stop := now
	if end != nil {
		stop = *end
	}
	if stop.Before(start) {
		return 0
	}
	return stop.Sub(start)
}
