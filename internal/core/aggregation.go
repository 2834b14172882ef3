package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// AggregationEngine turns sessions into per-day totals. It never writes.
type AggregationEngine struct {
	repo      repository.Repository
	clock     *clock.Resolver
	directory Directory
	now       func() time.Time
}

func NewAggregationEngine(repo repository.Repository, resolver *clock.Resolver, directory Directory, opts ...Option) *AggregationEngine {
	s := buildSettings(opts)
	return &AggregationEngine{
		repo:      repo,
		clock:     resolver,
		directory: directory,
		now:       s.now,
	}
}

type dayKey struct {
	employeeID string
	date       clock.Date
}

// DailyTotals sums the sessions that started on date for one employee.
func (a *AggregationEngine) DailyTotals(ctx context.Context, employeeID string, date clock.Date) (*model.DailyTotals, error) {
	start, end := a.clock.DayBounds(date)
	filter := repository.SessionFilter{EmployeeID: employeeID, StartFrom: start, StartTo: end}

	work, err := a.repo.ListWorkSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	breaks, err := a.repo.ListBreakSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list break sessions: %w", err)
	}

	totals := a.accumulate(employeeID, date, work, breaks)
	if totals.FirstStart == nil || totals.LastEnd == nil {
		rec, err := a.repo.GetAttendance(ctx, employeeID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to get attendance: %w", err)
		}
		fillFromAttendance(totals, rec)
	}
	return totals, nil
}

// RangeTotals returns one DailyTotals per employee and local date in
// [from, to], ordered by date and employee.
func (a *AggregationEngine) RangeTotals(ctx context.Context, from, to clock.Date) ([]model.DailyTotals, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	start, end := a.clock.RangeBounds(from, to)
	filter := repository.SessionFilter{StartFrom: start, StartTo: end}
	work, err := a.repo.ListWorkSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	breaks, err := a.repo.ListBreakSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list break sessions: %w", err)
	}
	records, err := a.repo.ListAttendance(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	workByDay := make(map[dayKey][]model.WorkSession)
	for _, s := range work {
		k := dayKey{s.EmployeeID, a.clock.LocalDate(s.StartTime)}
		workByDay[k] = append(workByDay[k], s)
	}
	breaksByDay := make(map[dayKey][]model.BreakSession)
	for _, s := range breaks {
		k := dayKey{s.EmployeeID, a.clock.LocalDate(s.StartTime)}
		breaksByDay[k] = append(breaksByDay[k], s)
	}

	keys := make(map[dayKey]struct{})
	for k := range workByDay {
		keys[k] = struct{}{}
	}
	for k := range breaksByDay {
		keys[k] = struct{}{}
	}
	recordByDay := make(map[dayKey]*model.AttendanceRecord, len(records))
	for i := range records {
		k := dayKey{records[i].EmployeeID, records[i].Date}
		recordByDay[k] = &records[i]
		if records[i].ClockIn != nil {
			keys[k] = struct{}{}
		}
	}

	out := make([]model.DailyTotals, 0, len(keys))
	for k := range keys {
		totals := a.accumulate(k.employeeID, k.date, workByDay[k], breaksByDay[k])
		fillFromAttendance(totals, recordByDay[k])
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

// MonthlySummary counts statuses for every active employee over the days of
// the month up to today. A day without a record counts as absent and
// half_day_late counts as a half day.
func (a *AggregationEngine) MonthlySummary(ctx context.Context, year int, month time.Month) (*model.MonthlySummary, error) {
	if month < time.January || month > time.December {
		return nil, model.ErrInvalidDateRange
	}

	employees, err := a.directory.ActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}

	first, last := clock.MonthRange(year, month)
	if today := a.clock.Today(a.now()); today.Before(last) {
		last = today
	}
	summary := &model.MonthlySummary{Year: year, Month: month, Employees: len(employees)}
	if last.Before(first) {
		return summary, nil
	}

	records, err := a.repo.ListAttendance(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	byDay := make(map[dayKey]model.AttendanceStatus, len(records))
	for _, r := range records {
		byDay[dayKey{r.EmployeeID, r.Date}] = r.Status
	}

	for d := first; !d.After(last); d = d.AddDays(1) {
		summary.Days++
		for _, id := range employees {
			status, ok := byDay[dayKey{id, d}]
			if !ok {
				status = model.StatusAbsent
			}
			switch status {
			case model.StatusPresent:
				summary.Present++
			case model.StatusLate:
				summary.Late++
			case model.StatusHalfDay, model.StatusHalfDayLate:
				summary.HalfDay++
			case model.StatusLeave:
				summary.Leave++
			case model.StatusHoliday:
				summary.Holiday++
			default:
				summary.Absent++
			}
		}
	}

	log.Ctx(ctx).Debug().
		Int("year", year).
		Int("month", int(month)).
		Int("employees", len(employees)).
		Msg("Monthly summary computed")
	return summary, nil
}

func (a *AggregationEngine) accumulate(employeeID string, date clock.Date, work []model.WorkSession, breaks []model.BreakSession) *model.DailyTotals {
	now := a.now()
	totals := &model.DailyTotals{EmployeeID: employeeID, Date: date}

	var productive, breakTime, support time.Duration
	track := func(start time.Time, end *time.Time) {
		if totals.FirstStart == nil || start.Before(*totals.FirstStart) {
			s := start
			totals.FirstStart = &s
		}
		if end == nil {
			totals.HasOpenSession = true
			return
		}
		if totals.LastEnd == nil || end.After(*totals.LastEnd) {
			e := *end
			totals.LastEnd = &e
		}
	}

	for i := range work {
		s := &work[i]
		productive += a.sessionDuration(s.StartTime, s.EndTime, s.DurationSeconds, now)
		track(s.StartTime, s.EndTime)
		if totals.FirstWorkStart == nil || s.StartTime.Before(*totals.FirstWorkStart) {
			start := s.StartTime
			totals.FirstWorkStart = &start
		}
	}
	for i := range breaks {
		s := &breaks[i]
		d := a.sessionDuration(s.StartTime, s.EndTime, s.DurationSeconds, now)
		if s.Type == model.BreakTypeSupport {
			support += d
		} else {
			breakTime += d
		}
		track(s.StartTime, s.EndTime)
	}

	totals.ProductiveSeconds = int64(productive / time.Second)
	totals.BreakSeconds = int64(breakTime / time.Second)
	totals.SupportSeconds = int64(support / time.Second)
	return totals
}

// sessionDuration uses the stored duration of a closed session. An open one
// counts up to now, but never past the end of the local day it started on.
func (a *AggregationEngine) sessionDuration(start time.Time, end *time.Time, stored *int64, now time.Time) time.Duration {
	if end != nil {
		if stored != nil {
			return time.Duration(*stored) * time.Second
		}
		return elapsedBetween(start, *end)
	}
	stop := now
	if eod := a.clock.EndOfDay(a.clock.LocalDate(start)); eod.Before(stop) {
		stop = eod
	}
	return elapsedBetween(start, stop)
}

func elapsedBetween(start, stop time.Time) time.Duration {
	if stop.Before(start) {
		return 0
	}
	return stop.Sub(start)
}

func fillFromAttendance(totals *model.DailyTotals, rec *model.AttendanceRecord) {
	if rec == nil {
		return
	}
	if totals.FirstStart == nil && rec.ClockIn != nil {
		t := *rec.ClockIn
		totals.FirstStart = &t
	}
	if totals.LastEnd == nil && rec.ClockOut != nil {
		t := *rec.ClockOut
		totals.LastEnd = &t
	}
}

func validateRange(from, to clock.Date) error {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return model.ErrInvalidDateRange
	}
	if from.DaysUntil(to) >= maxReportingRange {
		return fmt.Errorf("%w: at most %d days", model.ErrInvalidDateRange, maxReportingRange)
	}
	return nil
}
