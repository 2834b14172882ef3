package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
	"attendance.service/internal/observability"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// CheckInInput carries the request metadata recorded on a check-in or check-out.
type CheckInInput struct {
	IP          string
	WorkingFrom string
}

// StartWorkInput describes the work session to open.
type StartWorkInput struct {
	ProjectID *string
	TaskID    *string
	Memo      string
}

// TimerService owns every state transition of the attendance timer. Each
// operation runs under the employee's lock and first rolls over sessions left
// open on a previous local day.
type TimerService struct {
	repo       repository.Repository
	clock      *clock.Resolver
	aggregator *AggregationEngine
	publisher  messaging.Publisher
	now        func() time.Time
	newID      func() string
}

func NewTimerService(repo repository.Repository, resolver *clock.Resolver, aggregator *AggregationEngine, publisher messaging.Publisher, opts ...Option) *TimerService {
	s := buildSettings(opts)
	return &TimerService{
		repo:       repo,
		clock:      resolver,
		aggregator: aggregator,
		publisher:  publisher,
		now:        s.now,
		newID:      s.newID,
	}
}

// CheckIn records the first check-in of the day or reopens a checked-out day.
// The status is recomputed from the new check-in time either way.
func (s *TimerService) CheckIn(ctx context.Context, employeeID string, in CheckInInput) (result *model.CheckInOutResult, err error) {
	defer func() { observability.RecordTransition("check_in", err) }()

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}

		today, local := s.clock.ToLocal(now)
		rec, err := s.repo.GetAttendance(ctx, employeeID, today)
		if err != nil {
			return fmt.Errorf("failed to get attendance: %w", err)
		}

		var message string
		switch {
		case rec == nil || rec.ClockIn == nil:
			if rec == nil {
				rec = &model.AttendanceRecord{EmployeeID: employeeID, Date: today}
			}
			message = "Checked in successfully"
		case rec.ClockOut != nil:
			rec.ClockOut = nil
			message = "Re-checked in successfully!"
		default:
			message = "Welcome back! Check-in time updated."
		}

		rec.ClockIn = &now
		rec.ClockInIP = in.IP
		rec.WorkingFrom = in.WorkingFrom
		if rec.WorkingFrom == "" {
			rec.WorkingFrom = model.DefaultWorkingFrom
		}
		rec.Status, rec.IsLate, rec.IsHalfDay = ClassifyCheckIn(local)

		if err := s.repo.SaveAttendance(ctx, rec); err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}
		result = &model.CheckInOutResult{Message: message, Status: rec.Status, Time: s.clock.FormatClock(now), Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("employeeId", employeeID).
		Str("status", string(result.Record.Status)).
		Msg("Employee checked in")
	return result, nil
}

// CheckOut closes the day and every open session at the same instant, then
// publishes a DayClosedEvent.
func (s *TimerService) CheckOut(ctx context.Context, employeeID string, in CheckInInput) (result *model.CheckInOutResult, err error) {
	defer func() { observability.RecordTransition("check_out", err) }()

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}

		rec, err := s.repo.GetAttendance(ctx, employeeID, s.clock.Today(now))
		if err != nil {
			return fmt.Errorf("failed to get attendance: %w", err)
		}
		if rec == nil || rec.ClockIn == nil {
			return model.ErrNotCheckedIn
		}
		if rec.ClockOut != nil {
			return model.ErrAlreadyCheckedOut
		}

		rec.ClockOut = &now
		rec.ClockOutIP = in.IP
		if err := s.repo.SaveAttendance(ctx, rec); err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}
		if _, err := s.closeOpenWork(ctx, employeeID, now); err != nil {
			return err
		}
		if _, err := s.closeOpenBreak(ctx, employeeID, now); err != nil {
			return err
		}
		result = &model.CheckInOutResult{Message: "Checked out successfully", Status: rec.Status, Time: s.clock.FormatClock(now), Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("employeeId", employeeID).Msg("Employee checked out")
	s.publishDayClosed(ctx, result.Record)
	return result, nil
}

// StartWork opens a work session, closing any open work or break first.
func (s *TimerService) StartWork(ctx context.Context, employeeID string, in StartWorkInput) (session *model.WorkSession, err error) {
	defer func() { observability.RecordTransition("start_work", err) }()

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		if _, err := s.closeOpenWork(ctx, employeeID, now); err != nil {
			return err
		}
		if _, err := s.closeOpenBreak(ctx, employeeID, now); err != nil {
			return err
		}

		session = &model.WorkSession{
			ID:         s.newID(),
			EmployeeID: employeeID,
			ProjectID:  emptyToNil(in.ProjectID),
			TaskID:     emptyToNil(in.TaskID),
			Memo:       in.Memo,
			StartTime:  now,
		}
		if err := s.repo.CreateWorkSession(ctx, session); err != nil {
			return fmt.Errorf("failed to create work session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// StopWork closes the open work session.
func (s *TimerService) StopWork(ctx context.Context, employeeID string) (session *model.WorkSession, err error) {
	defer func() { observability.RecordTransition("stop_work", err) }()

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		closed, err := s.closeOpenWork(ctx, employeeID, now)
		if err != nil {
			return err
		}
		if closed == nil {
			return model.ErrNoActiveWorkSession
		}
		session = closed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// StartBreak pauses work and opens a break or support session. Starting a
// break while one is open closes it first.
func (s *TimerService) StartBreak(ctx context.Context, employeeID string, breakType model.BreakType) (session *model.BreakSession, err error) {
	defer func() { observability.RecordTransition("start_break", err) }()

	if breakType == "" {
		breakType = model.BreakTypeBreak
	}
	if !breakType.Valid() {
		return nil, model.ErrInvalidBreakType
	}

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		if _, err := s.closeOpenWork(ctx, employeeID, now); err != nil {
			return err
		}
		if _, err := s.closeOpenBreak(ctx, employeeID, now); err != nil {
			return err
		}

		session = &model.BreakSession{
			ID:         s.newID(),
			EmployeeID: employeeID,
			Type:       breakType,
			StartTime:  now,
		}
		if err := s.repo.CreateBreakSession(ctx, session); err != nil {
			return fmt.Errorf("failed to create break session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// StopBreak closes the open break. Work is not resumed automatically.
func (s *TimerService) StopBreak(ctx context.Context, employeeID string) (session *model.BreakSession, err error) {
	defer func() { observability.RecordTransition("stop_break", err) }()

	now := s.now()
	err = s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		closed, err := s.closeOpenBreak(ctx, employeeID, now)
		if err != nil {
			return err
		}
		if closed == nil {
			return model.ErrNoActiveBreak
		}
		session = closed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Status reports the open sessions and today's totals.
func (s *TimerService) Status(ctx context.Context, employeeID string) (*model.TimerStatus, error) {
	now := s.now()
	var status *model.TimerStatus
	err := s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		work, err := s.repo.FindOpenWorkSession(ctx, employeeID)
		if err != nil {
			return fmt.Errorf("failed to find open work session: %w", err)
		}
		brk, err := s.repo.FindOpenBreakSession(ctx, employeeID)
		if err != nil {
			return fmt.Errorf("failed to find open break session: %w", err)
		}
		totals, err := s.aggregator.DailyTotals(ctx, employeeID, s.clock.Today(now))
		if err != nil {
			return err
		}

		remaining := int64(DailyTarget/time.Second) - totals.ProductiveSeconds
		status = &model.TimerStatus{
			IsWorking:           work != nil,
			IsOnBreak:           brk != nil,
			CurrentWorkSession:  work,
			CurrentBreakSession: brk,
			TodayTotalWork:      FormatSeconds(totals.ProductiveSeconds),
			TodayTotalBreak:     FormatSeconds(totals.BreakSeconds),
			TodayTotalSupport:   FormatSeconds(totals.SupportSeconds),
			TodayWorkSeconds:    totals.ProductiveSeconds,
			TodayBreakSeconds:   totals.BreakSeconds,
			TodaySupportSeconds: totals.SupportSeconds,
			TargetHours:         targetHoursLabel,
			RemainingHours:      FormatSeconds(remaining),
		}
		switch {
		case work != nil:
			t := model.ActivityWork
			status.ActiveType = &t
		case brk != nil:
			t := model.ActivityType(brk.Type)
			status.ActiveType = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// AttendanceStatus is the check-in widget view of today. The first work
// session start and the last session end are preferred over the raw clock-in
// and clock-out.
func (s *TimerService) AttendanceStatus(ctx context.Context, employeeID string) (*model.AttendanceView, error) {
	now := s.now()
	today := s.clock.Today(now)
	var view *model.AttendanceView
	err := s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		if err := s.reconcile(ctx, employeeID, now); err != nil {
			return err
		}
		rec, err := s.repo.GetAttendance(ctx, employeeID, today)
		if err != nil {
			return fmt.Errorf("failed to get attendance: %w", err)
		}
		totals, err := s.aggregator.DailyTotals(ctx, employeeID, today)
		if err != nil {
			return err
		}

		view = &model.AttendanceView{
			Date:            today,
			Status:          model.StatusAbsent,
			ProductiveHours: FormatSeconds(totals.ProductiveSeconds),
			CanCheckIn:      true,
		}
		if rec == nil {
			return nil
		}
		view.Status = rec.Status
		view.WorkingFrom = rec.WorkingFrom
		view.IsLate = rec.IsLate
		view.IsHalfDay = rec.IsHalfDay
		view.IsCheckedIn = rec.ClockIn != nil
		view.IsCheckedOut = rec.ClockOut != nil
		view.CanCheckIn = rec.ClockIn == nil || rec.ClockOut != nil
		view.CanCheckOut = rec.CheckedIn()

		clockIn := totals.FirstWorkStart
		if clockIn == nil {
			clockIn = rec.ClockIn
		}
		if clockIn != nil {
			v := s.clock.FormatDisplay(*clockIn)
			view.ClockIn = &v
		}
		if rec.ClockOut != nil {
			end := *rec.ClockOut
			if totals.LastEnd != nil {
				end = *totals.LastEnd
			}
			v := s.clock.FormatDisplay(end)
			view.ClockOut = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RecordExternalStatus marks a day as leave or holiday for an employee. It
// keeps any clock times already recorded.
func (s *TimerService) RecordExternalStatus(ctx context.Context, employeeID string, date clock.Date, status model.AttendanceStatus) (*model.AttendanceRecord, error) {
	if status != model.StatusLeave && status != model.StatusHoliday {
		return nil, model.ErrInvalidStatus
	}
	if date.IsZero() {
		return nil, model.ErrInvalidDateRange
	}

	var rec *model.AttendanceRecord
	err := s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
		existing, err := s.repo.GetAttendance(ctx, employeeID, date)
		if err != nil {
			return fmt.Errorf("failed to get attendance: %w", err)
		}
		rec = existing
		if rec == nil {
			rec = &model.AttendanceRecord{EmployeeID: employeeID, Date: date, WorkingFrom: model.DefaultWorkingFrom}
		}
		rec.Status = status
		if err := s.repo.SaveAttendance(ctx, rec); err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("employeeId", employeeID).
		Str("date", date.String()).
		Str("status", string(status)).
		Msg("External attendance status recorded")
	return rec, nil
}

// ActiveSessions lists every open session across employees. Sessions left
// open on a previous day are rolled over first and not reported.
func (s *TimerService) ActiveSessions(ctx context.Context) ([]model.ActiveSession, error) {
	now := s.now()
	today := s.clock.Today(now)

	work, err := s.repo.ListOpenWorkSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open work sessions: %w", err)
	}
	breaks, err := s.repo.ListOpenBreakSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open break sessions: %w", err)
	}

	stale := make(map[string]struct{})
	for _, w := range work {
		if s.clock.LocalDate(w.StartTime).Before(today) {
			stale[w.EmployeeID] = struct{}{}
		}
	}
	for _, b := range breaks {
		if s.clock.LocalDate(b.StartTime).Before(today) {
			stale[b.EmployeeID] = struct{}{}
		}
	}
	for employeeID := range stale {
		err := s.repo.WithEmployeeLock(ctx, employeeID, func(ctx context.Context) error {
			return s.reconcile(ctx, employeeID, now)
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]model.ActiveSession, 0, len(work)+len(breaks))
	for _, w := range work {
		if s.clock.LocalDate(w.StartTime).Before(today) {
			continue
		}
		out = append(out, model.ActiveSession{
			EmployeeID:     w.EmployeeID,
			SessionID:      w.ID,
			Kind:           "work",
			ProjectID:      w.ProjectID,
			TaskID:         w.TaskID,
			Memo:           w.Memo,
			StartTime:      w.StartTime,
			StartedAt:      s.clock.FormatDisplay(w.StartTime),
			ElapsedSeconds: int64(w.Elapsed(now) / time.Second),
		})
	}
	for _, b := range breaks {
		if s.clock.LocalDate(b.StartTime).Before(today) {
			continue
		}
		out = append(out, model.ActiveSession{
			EmployeeID:     b.EmployeeID,
			SessionID:      b.ID,
			Kind:           string(b.Type),
			StartTime:      b.StartTime,
			StartedAt:      s.clock.FormatDisplay(b.StartTime),
			ElapsedSeconds: int64(b.Elapsed(now) / time.Second),
		})
	}
	return out, nil
}

// reconcile closes sessions that started on an earlier local day at 23:59:59
// of that day. It must run under the employee's lock.
func (s *TimerService) reconcile(ctx context.Context, employeeID string, now time.Time) error {
	today := s.clock.Today(now)

	work, err := s.repo.FindOpenWorkSession(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("failed to find open work session: %w", err)
	}
	if work != nil {
		if started := s.clock.LocalDate(work.StartTime); started.Before(today) {
			work.Close(s.clock.EndOfDay(started))
			if err := s.repo.CloseWorkSession(ctx, work); err != nil {
				return fmt.Errorf("failed to roll over work session: %w", err)
			}
			observability.RecordRollover("work")
			log.Ctx(ctx).Info().
				Str("employeeId", employeeID).
				Str("sessionId", work.ID).
				Str("date", started.String()).
				Msg("Rolled over work session left open overnight")
		}
	}

	brk, err := s.repo.FindOpenBreakSession(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("failed to find open break session: %w", err)
	}
	if brk != nil {
		if started := s.clock.LocalDate(brk.StartTime); started.Before(today) {
			brk.Close(s.clock.EndOfDay(started))
			if err := s.repo.CloseBreakSession(ctx, brk); err != nil {
				return fmt.Errorf("failed to roll over break session: %w", err)
			}
			observability.RecordRollover(string(brk.Type))
			log.Ctx(ctx).Info().
				Str("employeeId", employeeID).
				Str("sessionId", brk.ID).
				Str("date", started.String()).
				Msg("Rolled over break session left open overnight")
		}
	}
	return nil
}

func (s *TimerService) closeOpenWork(ctx context.Context, employeeID string, at time.Time) (*model.WorkSession, error) {
	work, err := s.repo.FindOpenWorkSession(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open work session: %w", err)
	}
	if work == nil {
		return nil, nil
	}
	work.Close(at)
	if err := s.repo.CloseWorkSession(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to close work session: %w", err)
	}
	return work, nil
}

func (s *TimerService) closeOpenBreak(ctx context.Context, employeeID string, at time.Time) (*model.BreakSession, error) {
	brk, err := s.repo.FindOpenBreakSession(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open break session: %w", err)
	}
	if brk == nil {
		return nil, nil
	}
	brk.Close(at)
	if err := s.repo.CloseBreakSession(ctx, brk); err != nil {
		return nil, fmt.Errorf("failed to close break session: %w", err)
	}
	return brk, nil
}

func (s *TimerService) publishDayClosed(ctx context.Context, rec *model.AttendanceRecord) {
	if s.publisher == nil {
		return
	}
	totals, err := s.aggregator.DailyTotals(ctx, rec.EmployeeID, rec.Date)
	if err == nil {
		event := messaging.DayClosedEvent{
			EmployeeID:        rec.EmployeeID,
			Date:              rec.Date.String(),
			Status:            string(rec.Status),
			ClockIn:           *rec.ClockIn,
			ClockOut:          *rec.ClockOut,
			ProductiveSeconds: totals.ProductiveSeconds,
			BreakSeconds:      totals.BreakSeconds,
			SupportSeconds:    totals.SupportSeconds,
		}
		err = s.publisher.PublishDayClosed(ctx, event)
	}
	if err != nil {
		observability.RecordPublishFailure()
		log.Ctx(ctx).Error().Err(err).Str("employeeId", rec.EmployeeID).Msg("Failed to publish day closed event")
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// IsUserError reports whether err is a recoverable timer rule violation rather
// than an infrastructure failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		model.ErrNotCheckedIn,
		model.ErrAlreadyCheckedOut,
		model.ErrNoActiveWorkSession,
		model.ErrNoActiveBreak,
		model.ErrInvalidBreakType,
		model.ErrInvalidDateRange,
		model.ErrEmployeeNotFound,
		model.ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
