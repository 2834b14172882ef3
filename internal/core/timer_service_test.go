package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInStatusBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		h, m, s   int
		status    model.AttendanceStatus
		isLate    bool
		isHalfDay bool
	}{
		{"early", 8, 45, 0, model.StatusPresent, false, false},
		{"on the cutoff", 9, 30, 0, model.StatusPresent, false, false},
		{"one second late", 9, 30, 1, model.StatusLate, true, false},
		{"just before half day", 13, 59, 59, model.StatusLate, true, false},
		{"exactly half day", 14, 0, 0, model.StatusHalfDay, false, true},
		{"after half day", 14, 0, 1, model.StatusHalfDayLate, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.at(2025, time.March, 10, tc.h, tc.m, tc.s)

			res, err := f.timer.CheckIn(context.Background(), "emp-1", CheckInInput{IP: "10.0.0.1"})
			require.NoError(t, err)

			assert.Equal(t, tc.status, res.Record.Status)
			assert.Equal(t, tc.isLate, res.Record.IsLate)
			assert.Equal(t, tc.isHalfDay, res.Record.IsHalfDay)
			assert.Equal(t, model.DefaultWorkingFrom, res.Record.WorkingFrom)
			assert.Equal(t, "Checked in successfully", res.Message)
		})
	}
}

func TestCheckInAfterCheckOutReopensDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 9, 0, 0)
	_, err := f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 12, 0, 0)
	_, err = f.timer.CheckOut(ctx, "emp-1", CheckInInput{IP: "10.0.0.2"})
	require.NoError(t, err)

	reopenAt := f.at(2025, time.March, 10, 14, 30, 0)
	res, err := f.timer.CheckIn(ctx, "emp-1", CheckInInput{WorkingFrom: "Home"})
	require.NoError(t, err)

	assert.Equal(t, "Re-checked in successfully!", res.Message)
	assert.Nil(t, res.Record.ClockOut)
	assert.Equal(t, reopenAt, *res.Record.ClockIn)
	assert.Equal(t, model.StatusHalfDayLate, res.Record.Status)
	assert.Equal(t, "Home", res.Record.WorkingFrom)

	f.at(2025, time.March, 10, 15, 0, 0)
	res, err = f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)
	assert.Equal(t, "Welcome back! Check-in time updated.", res.Message)
}

func TestCheckOutRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(2025, time.March, 10, 9, 0, 0)

	_, err := f.timer.CheckOut(ctx, "emp-1", CheckInInput{})
	assert.ErrorIs(t, err, model.ErrNotCheckedIn)

	_, err = f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)
	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{ProjectID: strPtr("p-1")})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 11, 0, 0)
	_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakTypeSupport)
	require.NoError(t, err)
	f.at(2025, time.March, 10, 11, 30, 0)
	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)
	f.at(2025, time.March, 10, 12, 0, 0)
	_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakTypeBreak)
	require.NoError(t, err)

	out := f.at(2025, time.March, 10, 18, 0, 0)
	res, err := f.timer.CheckOut(ctx, "emp-1", CheckInInput{IP: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, out, *res.Record.ClockOut)
	assert.Equal(t, "10.0.0.9", res.Record.ClockOutIP)

	work, err := f.repo.FindOpenWorkSession(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, work)
	brk, err := f.repo.FindOpenBreakSession(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, brk)

	breaks, err := f.repo.ListBreakSessions(ctx, sessionsOf("emp-1"))
	require.NoError(t, err)
	require.Len(t, breaks, 2)
	assert.Equal(t, out, *breaks[1].EndTime)

	_, err = f.timer.CheckOut(ctx, "emp-1", CheckInInput{})
	assert.ErrorIs(t, err, model.ErrAlreadyCheckedOut)

	require.Len(t, f.publisher.dayClosed, 1)
	event := f.publisher.dayClosed[0]
	assert.Equal(t, "emp-1", event.EmployeeID)
	assert.Equal(t, "2025-03-10", event.Date)
	assert.Equal(t, int64(2*3600+30*60), event.ProductiveSeconds)
	assert.Equal(t, int64(6*3600), event.BreakSeconds)
	assert.Equal(t, int64(30*60), event.SupportSeconds)
}

func TestCheckOutSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errBoom
	ctx := context.Background()

	f.at(2025, time.March, 10, 9, 0, 0)
	_, err := f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 17, 0, 0)
	_, err = f.timer.CheckOut(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)

	rec, err := f.repo.GetAttendance(ctx, "emp-1", f.clock.Today(f.now.Now()))
	require.NoError(t, err)
	assert.NotNil(t, rec.ClockOut)
}

func TestStartWorkClosesPreviousSessionAtSameInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 9, 0, 0)
	first, err := f.timer.StartWork(ctx, "emp-1", StartWorkInput{ProjectID: strPtr("p-1"), Memo: "standup"})
	require.NoError(t, err)

	switchAt := f.at(2025, time.March, 10, 10, 15, 0)
	second, err := f.timer.StartWork(ctx, "emp-1", StartWorkInput{ProjectID: strPtr("p-2"), TaskID: strPtr("")})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Nil(t, second.TaskID)

	sessions, err := f.repo.ListWorkSessions(ctx, sessionsOf("emp-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, switchAt, *sessions[0].EndTime)
	assert.Equal(t, int64(75*60), *sessions[0].DurationSeconds)
	assert.Equal(t, switchAt, sessions[1].StartTime)
	assert.True(t, sessions[1].IsOpen())
}

func TestBreakTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(2025, time.March, 10, 9, 0, 0)

	_, err := f.timer.StopWork(ctx, "emp-1")
	assert.ErrorIs(t, err, model.ErrNoActiveWorkSession)
	_, err = f.timer.StopBreak(ctx, "emp-1")
	assert.ErrorIs(t, err, model.ErrNoActiveBreak)
	_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakType("nap"))
	assert.ErrorIs(t, err, model.ErrInvalidBreakType)

	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 11, 0, 0)
	brk, err := f.timer.StartBreak(ctx, "emp-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.BreakTypeBreak, brk.Type)

	status, err := f.timer.Status(ctx, "emp-1")
	require.NoError(t, err)
	assert.False(t, status.IsWorking)
	assert.True(t, status.IsOnBreak)
	require.NotNil(t, status.ActiveType)
	assert.Equal(t, model.ActivityType(model.BreakTypeBreak), *status.ActiveType)

	f.at(2025, time.March, 10, 11, 30, 0)
	stopped, err := f.timer.StopBreak(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30*60), *stopped.DurationSeconds)

	status, err = f.timer.Status(ctx, "emp-1")
	require.NoError(t, err)
	assert.False(t, status.IsWorking, "stopping a break does not resume work")
	assert.False(t, status.IsOnBreak)
	assert.Equal(t, "2:00:00", status.TodayTotalWork)
	assert.Equal(t, "0:30:00", status.TodayTotalBreak)
	assert.Equal(t, "6:00:00", status.RemainingHours)
}

func TestStatusWithNoActivity(t *testing.T) {
	f := newFixture(t)
	f.at(2025, time.March, 10, 9, 0, 0)

	status, err := f.timer.Status(context.Background(), "emp-1")
	require.NoError(t, err)

	assert.False(t, status.IsWorking)
	assert.False(t, status.IsOnBreak)
	assert.Nil(t, status.ActiveType)
	assert.Nil(t, status.CurrentWorkSession)
	assert.Nil(t, status.CurrentBreakSession)
	assert.Equal(t, "0:00:00", status.TodayTotalWork)
	assert.Equal(t, "0:00:00", status.TodayTotalBreak)
	assert.Equal(t, "0:00:00", status.TodayTotalSupport)
	assert.Equal(t, "08:00:00", status.TargetHours)
	assert.Equal(t, "8:00:00", status.RemainingHours)

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	for _, key := range []string{"today_total_work_seconds", "today_total_break_seconds", "today_total_support_seconds"} {
		assert.Contains(t, body, key)
		assert.EqualValues(t, 0, body[key])
	}
	assert.Nil(t, body["active_type"])
}

func TestStatusActiveTypeFollowsOpenSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 9, 0, 0)
	_, err := f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 9, 15, 0)
	status, err := f.timer.Status(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, status.ActiveType)
	assert.Equal(t, model.ActivityWork, *status.ActiveType)
	assert.Equal(t, int64(15*60), status.TodayWorkSeconds)

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"active_type":"work"`)
	assert.Contains(t, string(raw), `"today_total_work_seconds":900`)

	_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakTypeSupport)
	require.NoError(t, err)
	status, err = f.timer.Status(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, status.ActiveType)
	assert.Equal(t, model.ActivityType(model.BreakTypeSupport), *status.ActiveType)
}

func TestRolloverClosesSessionAtEndOfStartDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 22, 0, 0)
	work, err := f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 11, 9, 0, 0)
	status, err := f.timer.Status(ctx, "emp-1")
	require.NoError(t, err)
	assert.False(t, status.IsWorking)
	assert.Equal(t, "0:00:00", status.TodayTotalWork)

	sessions, err := f.repo.ListWorkSessions(ctx, sessionsOf("emp-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, work.ID, sessions[0].ID)
	assert.Equal(t, f.local(2025, time.March, 10, 23, 59, 59), *sessions[0].EndTime)
	assert.Equal(t, int64(2*3600-1), *sessions[0].DurationSeconds)

	totals, err := f.agg.DailyTotals(ctx, "emp-1", f.clock.LocalDate(work.StartTime))
	require.NoError(t, err)
	assert.Equal(t, int64(2*3600-1), totals.ProductiveSeconds)
}

func TestRolloverAppliesBeforeStartingNewDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 23, 0, 0)
	_, err := f.timer.StartBreak(ctx, "emp-1", model.BreakTypeSupport)
	require.NoError(t, err)

	f.at(2025, time.March, 11, 8, 0, 0)
	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	breaks, err := f.repo.ListBreakSessions(ctx, sessionsOf("emp-1"))
	require.NoError(t, err)
	require.Len(t, breaks, 1)
	assert.Equal(t, f.local(2025, time.March, 10, 23, 59, 59), *breaks[0].EndTime)
}

func TestConcurrentTransitionsKeepOneOpenSessionPerKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(2025, time.March, 10, 10, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			switch i % 4 {
			case 0, 1:
				_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
			case 2:
				_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakTypeBreak)
			default:
				_, err = f.timer.StartBreak(ctx, "emp-1", model.BreakTypeSupport)
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	openWork, err := f.repo.ListOpenWorkSessions(ctx)
	require.NoError(t, err)
	openBreaks, err := f.repo.ListOpenBreakSessions(ctx)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(openWork), 1)
	assert.LessOrEqual(t, len(openBreaks), 1)
	assert.Equal(t, 1, len(openWork)+len(openBreaks), "exactly one timer is running after the last transition")
}

func TestAttendanceStatusPrefersSessionTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 9, 5, 0)
	_, err := f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 9, 10, 0)
	_, err = f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)
	_, err = f.timer.CheckIn(ctx, "emp-2", CheckInInput{})
	require.NoError(t, err)

	view, err := f.timer.AttendanceStatus(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, view.ClockIn)
	assert.Equal(t, "09:05 AM", *view.ClockIn)
	assert.Nil(t, view.ClockOut)
	assert.True(t, view.CanCheckOut)
	assert.False(t, view.CanCheckIn)

	view, err = f.timer.AttendanceStatus(ctx, "emp-2")
	require.NoError(t, err)
	require.NotNil(t, view.ClockIn)
	assert.Equal(t, "09:10 AM", *view.ClockIn, "falls back to the raw clock-in without sessions")

	f.at(2025, time.March, 10, 17, 45, 0)
	_, err = f.timer.CheckOut(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)

	view, err = f.timer.AttendanceStatus(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, view.ClockOut)
	assert.Equal(t, "05:45 PM", *view.ClockOut)
	assert.Equal(t, "8:40:00", view.ProductiveHours)
	assert.True(t, view.IsCheckedOut)
	assert.True(t, view.CanCheckIn)
}

func TestAttendanceStatusIgnoresEarlierBreaksForClockIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 10, 8, 30, 0)
	_, err := f.timer.StartBreak(ctx, "emp-1", model.BreakTypeSupport)
	require.NoError(t, err)

	f.at(2025, time.March, 10, 8, 50, 0)
	_, err = f.timer.CheckIn(ctx, "emp-1", CheckInInput{})
	require.NoError(t, err)

	view, err := f.timer.AttendanceStatus(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, view.ClockIn)
	assert.Equal(t, "08:50 AM", *view.ClockIn, "support alone falls back to the raw clock-in")

	f.at(2025, time.March, 10, 9, 5, 0)
	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{})
	require.NoError(t, err)

	view, err = f.timer.AttendanceStatus(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, view.ClockIn)
	assert.Equal(t, "09:05 AM", *view.ClockIn)

	totals, err := f.agg.DailyTotals(ctx, "emp-1", f.clock.Today(f.now.Now()))
	require.NoError(t, err)
	assert.Equal(t, f.local(2025, time.March, 10, 8, 30, 0), *totals.FirstStart)
	assert.Equal(t, f.local(2025, time.March, 10, 9, 5, 0), *totals.FirstWorkStart)
}

func TestAttendanceStatusWithoutRecord(t *testing.T) {
	f := newFixture(t)
	f.at(2025, time.March, 10, 9, 0, 0)

	view, err := f.timer.AttendanceStatus(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAbsent, view.Status)
	assert.True(t, view.CanCheckIn)
	assert.Nil(t, view.ClockIn)
	assert.Nil(t, view.ClockOut)
}

func TestRecordExternalStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(2025, time.March, 10, 9, 0, 0)
	day := f.clock.Today(f.now.Now()).AddDays(3)

	_, err := f.timer.RecordExternalStatus(ctx, "emp-1", day, model.StatusPresent)
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	rec, err := f.timer.RecordExternalStatus(ctx, "emp-1", day, model.StatusLeave)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLeave, rec.Status)

	stored, err := f.repo.GetAttendance(ctx, "emp-1", day)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLeave, stored.Status)
	assert.Nil(t, stored.ClockIn)
}

func TestActiveSessionsRollsOverStaleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(2025, time.March, 9, 20, 0, 0)
	_, err := f.timer.StartWork(ctx, "emp-2", StartWorkInput{})
	require.NoError(t, err)

	f.at(2025, time.March, 10, 9, 0, 0)
	_, err = f.timer.StartWork(ctx, "emp-1", StartWorkInput{ProjectID: strPtr("p-1")})
	require.NoError(t, err)
	f.now.Advance(45 * time.Minute)

	active, err := f.timer.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "emp-1", active[0].EmployeeID)
	assert.Equal(t, "work", active[0].Kind)
	assert.Equal(t, int64(45*60), active[0].ElapsedSeconds)
	assert.Equal(t, "09:00 AM", active[0].StartedAt)

	stale, err := f.repo.FindOpenWorkSession(ctx, "emp-2")
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(model.ErrNoActiveBreak))
	assert.False(t, IsUserError(errBoom))
}
