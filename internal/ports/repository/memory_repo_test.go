package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openWork(id, employeeID string, start time.Time) *model.WorkSession {
	return &model.WorkSession{ID: id, EmployeeID: employeeID, StartTime: start}
}

func TestInMemoryRepository_OneOpenSessionPerKind(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateWorkSession(ctx, openWork("w-1", "emp-1", start)))
	err := repo.CreateWorkSession(ctx, openWork("w-2", "emp-1", start.Add(time.Minute)))
	assert.ErrorIs(t, err, ErrOpenSessionExists)

	// another employee and another kind are independent
	require.NoError(t, repo.CreateWorkSession(ctx, openWork("w-3", "emp-2", start)))
	require.NoError(t, repo.CreateBreakSession(ctx, &model.BreakSession{ID: "b-1", EmployeeID: "emp-1", Type: model.BreakTypeBreak, StartTime: start}))

	open, err := repo.FindOpenWorkSession(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	open.Close(start.Add(90 * time.Minute))
	require.NoError(t, repo.CloseWorkSession(ctx, open))

	open, err = repo.FindOpenWorkSession(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, open)
	require.NoError(t, repo.CreateWorkSession(ctx, openWork("w-4", "emp-1", start.Add(2*time.Hour))))

	all, err := repo.ListOpenWorkSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInMemoryRepository_SessionFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-time.Minute, 0, 12 * time.Hour, 24 * time.Hour} {
		s := openWork(string(rune('a'+i)), "emp-1", day.Add(offset))
		s.Close(s.StartTime.Add(time.Minute))
		require.NoError(t, repo.CreateWorkSession(ctx, s))
	}
	other := openWork("z", "emp-2", day.Add(time.Hour))
	require.NoError(t, repo.CreateWorkSession(ctx, other))

	got, err := repo.ListWorkSessions(ctx, SessionFilter{EmployeeID: "emp-1", StartFrom: day, StartTo: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day, got[0].StartTime)
	assert.Equal(t, day.Add(12*time.Hour), got[1].StartTime)

	got, err = repo.ListWorkSessions(ctx, SessionFilter{StartFrom: day, StartTo: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestInMemoryRepository_AttendanceKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	first := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }

	date := clock.Date{Year: 2024, Month: time.March, Day: 4}
	in := first
	require.NoError(t, repo.SaveAttendance(ctx, &model.AttendanceRecord{EmployeeID: "emp-1", Date: date, ClockIn: &in, Status: model.StatusPresent}))

	repo.now = func() time.Time { return first.Add(8 * time.Hour) }
	out := first.Add(8 * time.Hour)
	require.NoError(t, repo.SaveAttendance(ctx, &model.AttendanceRecord{EmployeeID: "emp-1", Date: date, ClockIn: &in, ClockOut: &out, Status: model.StatusPresent}))

	rec, err := repo.GetAttendance(ctx, "emp-1", date)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first, rec.CreatedAt)
	assert.Equal(t, out, rec.UpdatedAt)
	assert.Equal(t, out, *rec.ClockOut)

	missing, err := repo.GetAttendance(ctx, "emp-1", date.AddDays(1))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInMemoryRepository_Overtime(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	d1 := clock.Date{Year: 2024, Month: time.March, Day: 4}
	d2 := d1.AddDays(1)

	require.NoError(t, repo.UpsertOvertime(ctx, &model.Overtime{EmployeeID: "emp-1", Date: d1, Hours: 1.5}))
	require.NoError(t, repo.UpsertOvertime(ctx, &model.Overtime{EmployeeID: "emp-1", Date: d2, Hours: 0.25}))
	require.NoError(t, repo.UpsertOvertime(ctx, &model.Overtime{EmployeeID: "emp-1", Date: d1, Hours: 2}))

	rows, err := repo.ListOvertime(ctx, OvertimeFilter{EmployeeID: "emp-1", From: d1, To: d2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, d2, rows[0].Date, "newest first")
	assert.Equal(t, 2.0, rows[1].Hours)

	removed, err := repo.DeleteOvertime(ctx, "emp-1", d1)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.DeleteOvertime(ctx, "emp-1", d1)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestInMemoryRepository_WithEmployeeLock(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	t.Run("re-entrant for the same employee", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			done <- repo.WithEmployeeLock(ctx, "emp-1", func(ctx context.Context) error {
				return repo.WithEmployeeLock(ctx, "emp-1", func(context.Context) error { return nil })
			})
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("nested lock deadlocked")
		}
	})

	t.Run("serializes callers", func(t *testing.T) {
		var inside, maxInside int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = repo.WithEmployeeLock(ctx, "emp-2", func(context.Context) error {
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside)
	})
}
