package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
)

type attendanceKey struct {
	employeeID string
	date       clock.Date
}

type heldLocksKey struct{}

// InMemoryRepository keeps timer state in process memory for local development
// and tests. Writes made inside WithEmployeeLock are not rolled back on error.
type InMemoryRepository struct {
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu         sync.RWMutex
	attendance map[attendanceKey]model.AttendanceRecord
	work       map[string]model.WorkSession
	breaks     map[string]model.BreakSession
	overtime   map[attendanceKey]model.Overtime

	now func() time.Time
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locks:      make(map[string]*sync.Mutex),
		attendance: make(map[attendanceKey]model.AttendanceRecord),
		work:       make(map[string]model.WorkSession),
		breaks:     make(map[string]model.BreakSession),
		overtime:   make(map[attendanceKey]model.Overtime),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) employeeLock(employeeID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	m, ok := r.locks[employeeID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[employeeID] = m
	}
	return m
}

// WithEmployeeLock serializes fn with every other locked call for the same employee.
func (r *InMemoryRepository) WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) error {
	held, _ := ctx.Value(heldLocksKey{}).(map[string]struct{})
	if _, ok := held[employeeID]; ok {
		return fn(ctx)
	}

	m := r.employeeLock(employeeID)
	m.Lock()
	defer m.Unlock()

	next := make(map[string]struct{}, len(held)+1)
	for k := range held {
		next[k] = struct{}{}
	}
	next[employeeID] = struct{}{}
	return fn(context.WithValue(ctx, heldLocksKey{}, next))
}

func (r *InMemoryRepository) GetAttendance(ctx context.Context, employeeID string, date clock.Date) (*model.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.attendance[attendanceKey{employeeID, date}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *InMemoryRepository) SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attendanceKey{rec.EmployeeID, rec.Date}
	now := r.now()
	if existing, ok := r.attendance[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.attendance[key] = *rec
	return nil
}

func (r *InMemoryRepository) ListAttendance(ctx context.Context, from, to clock.Date) ([]model.AttendanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.AttendanceRecord
	for _, rec := range r.attendance {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (r *InMemoryRepository) FindOpenWorkSession(ctx context.Context, employeeID string) (*model.WorkSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.work {
		if s.EmployeeID == employeeID && s.IsOpen() {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *InMemoryRepository) FindOpenBreakSession(ctx context.Context, employeeID string) (*model.BreakSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.breaks {
		if s.EmployeeID == employeeID && s.IsOpen() {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *InMemoryRepository) CreateWorkSession(ctx context.Context, s *model.WorkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.work {
		if existing.EmployeeID == s.EmployeeID && existing.IsOpen() {
			return ErrOpenSessionExists
		}
	}
	r.work[s.ID] = *s
	return nil
}

func (r *InMemoryRepository) CreateBreakSession(ctx context.Context, s *model.BreakSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.breaks {
		if existing.EmployeeID == s.EmployeeID && existing.IsOpen() {
			return ErrOpenSessionExists
		}
	}
	r.breaks[s.ID] = *s
	return nil
}

func (r *InMemoryRepository) CloseWorkSession(ctx context.Context, s *model.WorkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.work[s.ID]
	if !ok {
		return nil
	}
	stored.EndTime = s.EndTime
	stored.DurationSeconds = s.DurationSeconds
	r.work[s.ID] = stored
	return nil
}

func (r *InMemoryRepository) CloseBreakSession(ctx context.Context, s *model.BreakSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.breaks[s.ID]
	if !ok {
		return nil
	}
	stored.EndTime = s.EndTime
	stored.DurationSeconds = s.DurationSeconds
	r.breaks[s.ID] = stored
	return nil
}

func (f SessionFilter) matches(employeeID string, start time.Time) bool {
	if f.EmployeeID != "" && f.EmployeeID != employeeID {
		return false
	}
	if !f.StartFrom.IsZero() && start.Before(f.StartFrom) {
		return false
	}
	if !f.StartTo.IsZero() && !start.Before(f.StartTo) {
		return false
	}
	return true
}

func (r *InMemoryRepository) ListWorkSessions(ctx context.Context, f SessionFilter) ([]model.WorkSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.WorkSession
	for _, s := range r.work {
		if f.matches(s.EmployeeID, s.StartTime) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) ListBreakSessions(ctx context.Context, f SessionFilter) ([]model.BreakSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.BreakSession
	for _, s := range r.breaks {
		if f.matches(s.EmployeeID, s.StartTime) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) ListOpenWorkSessions(ctx context.Context) ([]model.WorkSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.WorkSession
	for _, s := range r.work {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) ListOpenBreakSessions(ctx context.Context) ([]model.BreakSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.BreakSession
	for _, s := range r.breaks {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) GetOvertime(ctx context.Context, employeeID string, date clock.Date) (*model.Overtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overtime[attendanceKey{employeeID, date}]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *InMemoryRepository) UpsertOvertime(ctx context.Context, o *model.Overtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attendanceKey{o.EmployeeID, o.Date}
	now := r.now()
	if existing, ok := r.overtime[key]; ok {
		o.CreatedAt = existing.CreatedAt
	} else {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.overtime[key] = *o
	return nil
}

func (r *InMemoryRepository) DeleteOvertime(ctx context.Context, employeeID string, date clock.Date) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attendanceKey{employeeID, date}
	_, ok := r.overtime[key]
	delete(r.overtime, key)
	return ok, nil
}

func (r *InMemoryRepository) ListOvertime(ctx context.Context, f OvertimeFilter) ([]model.Overtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Overtime
	for _, o := range r.overtime {
		if f.EmployeeID != "" && o.EmployeeID != f.EmployeeID {
			continue
		}
		if o.Date.Before(f.From) || o.Date.After(f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}
