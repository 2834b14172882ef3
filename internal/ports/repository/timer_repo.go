package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// TimerRepository is the concrete implementation for a PostgreSQL database.
type TimerRepository struct {
	DB *sql.DB
}

// NewTimerRepository create new instance
func NewTimerRepository(db *sql.DB) Repository {
	return &TimerRepository{DB: db}
}

// q returns the transaction bound to ctx, or the pool.
func (r *TimerRepository) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.DB
}

func tagEmployee(ctx context.Context, employeeID string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))
}

// WithEmployeeLock opens a transaction and takes a transaction-scoped advisory
// lock keyed by the employee. Nested calls reuse the outer transaction.
func (r *TimerRepository) WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) error {
	tagEmployee(ctx, employeeID)

	lockQuery := `SELECT pg_advisory_xact_lock(hashtextextended('timer:' || $1, 0))`

	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		if _, err := tx.ExecContext(ctx, lockQuery, employeeID); err != nil {
			return fmt.Errorf("acquire employee lock: %w", err)
		}
		return fn(ctx)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Ctx(ctx).Error().Err(rbErr).Msg("rollback failed during panic recovery")
			}
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, lockQuery, employeeID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire employee lock: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const attendanceColumns = `employee_id, date, clock_in, clock_out, clock_in_ip, clock_out_ip,
	is_late, is_half_day, working_from, status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner) (*model.AttendanceRecord, error) {
	var (
		rec                          model.AttendanceRecord
		date                         time.Time
		clockIn, clockOut            sql.NullTime
		clockInIP, clockOutIP, notes sql.NullString
		status                       string
	)
	err := row.Scan(&rec.EmployeeID, &date, &clockIn, &clockOut, &clockInIP, &clockOutIP,
		&rec.IsLate, &rec.IsHalfDay, &rec.WorkingFrom, &status, &notes, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Date = clock.DateOf(date.UTC())
	rec.ClockIn = timePtr(clockIn)
	rec.ClockOut = timePtr(clockOut)
	rec.ClockInIP = clockInIP.String
	rec.ClockOutIP = clockOutIP.String
	rec.Notes = notes.String
	rec.Status = model.AttendanceStatus(status)
	return &rec, nil
}

// GetAttendance returns nil when the employee has no record for the date.
func (r *TimerRepository) GetAttendance(ctx context.Context, employeeID string, date clock.Date) (*model.AttendanceRecord, error) {
	tagEmployee(ctx, employeeID)

	query := `SELECT ` + attendanceColumns + `
              FROM attendance_records
              WHERE employee_id = $1 AND date = $2`

	rec, err := scanAttendance(r.q(ctx).QueryRowContext(ctx, query, employeeID, date.Midnight()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// SaveAttendance upserts on (employee_id, date).
func (r *TimerRepository) SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	tagEmployee(ctx, rec.EmployeeID)

	query := `INSERT INTO attendance_records (` + attendanceColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
              ON CONFLICT (employee_id, date) DO UPDATE SET
                  clock_in = EXCLUDED.clock_in,
                  clock_out = EXCLUDED.clock_out,
                  clock_in_ip = EXCLUDED.clock_in_ip,
                  clock_out_ip = EXCLUDED.clock_out_ip,
                  is_late = EXCLUDED.is_late,
                  is_half_day = EXCLUDED.is_half_day,
                  working_from = EXCLUDED.working_from,
                  status = EXCLUDED.status,
                  notes = EXCLUDED.notes,
                  updated_at = now()
              RETURNING created_at, updated_at`

	return r.q(ctx).QueryRowContext(ctx, query,
		rec.EmployeeID, rec.Date.Midnight(), rec.ClockIn, rec.ClockOut,
		nullString(rec.ClockInIP), nullString(rec.ClockOutIP),
		rec.IsLate, rec.IsHalfDay, rec.WorkingFrom, string(rec.Status), nullString(rec.Notes),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// ListAttendance returns every record with from <= date <= to.
func (r *TimerRepository) ListAttendance(ctx context.Context, from, to clock.Date) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
              FROM attendance_records
              WHERE date BETWEEN $1 AND $2
              ORDER BY date, employee_id`

	rows, err := r.q(ctx).QueryContext(ctx, query, from.Midnight(), to.Midnight())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

const workColumns = `id, employee_id, project_id, task_id, memo, start_time, end_time, duration_seconds`

func scanWork(row rowScanner) (*model.WorkSession, error) {
	var (
		s             model.WorkSession
		project, task sql.NullString
		end           sql.NullTime
		duration      sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.EmployeeID, &project, &task, &s.Memo, &s.StartTime, &end, &duration); err != nil {
		return nil, err
	}
	s.ProjectID = stringPtr(project)
	s.TaskID = stringPtr(task)
	s.StartTime = s.StartTime.UTC()
	s.EndTime = timePtr(end)
	if duration.Valid {
		s.DurationSeconds = &duration.Int64
	}
	return &s, nil
}

const breakColumns = `id, employee_id, type, start_time, end_time, duration_seconds`

func scanBreak(row rowScanner) (*model.BreakSession, error) {
	var (
		s        model.BreakSession
		kind     string
		end      sql.NullTime
		duration sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.EmployeeID, &kind, &s.StartTime, &end, &duration); err != nil {
		return nil, err
	}
	s.Type = model.BreakType(kind)
	s.StartTime = s.StartTime.UTC()
	s.EndTime = timePtr(end)
	if duration.Valid {
		s.DurationSeconds = &duration.Int64
	}
	return &s, nil
}

// FindOpenWorkSession get the open work session for a employee
func (r *TimerRepository) FindOpenWorkSession(ctx context.Context, employeeID string) (*model.WorkSession, error) {
	tagEmployee(ctx, employeeID)

	query := `SELECT ` + workColumns + `
              FROM work_sessions
              WHERE employee_id = $1 AND end_time IS NULL
              ORDER BY start_time DESC
              LIMIT 1`

	s, err := scanWork(r.q(ctx).QueryRowContext(ctx, query, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// FindOpenBreakSession get the open break session for a employee
func (r *TimerRepository) FindOpenBreakSession(ctx context.Context, employeeID string) (*model.BreakSession, error) {
	tagEmployee(ctx, employeeID)

	query := `SELECT ` + breakColumns + `
              FROM break_sessions
              WHERE employee_id = $1 AND end_time IS NULL
              ORDER BY start_time DESC
              LIMIT 1`

	s, err := scanBreak(r.q(ctx).QueryRowContext(ctx, query, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// CreateWorkSession inserts an open work session. The partial unique index on
// open sessions rejects a second one for the same employee.
func (r *TimerRepository) CreateWorkSession(ctx context.Context, s *model.WorkSession) error {
	tagEmployee(ctx, s.EmployeeID)

	query := `INSERT INTO work_sessions (id, employee_id, project_id, task_id, memo, start_time)
              VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.q(ctx).ExecContext(ctx, query, s.ID, s.EmployeeID, s.ProjectID, s.TaskID, s.Memo, s.StartTime)
	return mapUniqueViolation(err)
}

func (r *TimerRepository) CreateBreakSession(ctx context.Context, s *model.BreakSession) error {
	tagEmployee(ctx, s.EmployeeID)

	query := `INSERT INTO break_sessions (id, employee_id, type, start_time)
              VALUES ($1, $2, $3, $4)`

	_, err := r.q(ctx).ExecContext(ctx, query, s.ID, s.EmployeeID, string(s.Type), s.StartTime)
	return mapUniqueViolation(err)
}

// CloseWorkSession persists end_time and duration_seconds.
func (r *TimerRepository) CloseWorkSession(ctx context.Context, s *model.WorkSession) error {
	query := `UPDATE work_sessions
              SET end_time = $1,
                  duration_seconds = $2
              WHERE id = $3`

	_, err := r.q(ctx).ExecContext(ctx, query, s.EndTime, s.DurationSeconds, s.ID)
	return err
}

func (r *TimerRepository) CloseBreakSession(ctx context.Context, s *model.BreakSession) error {
	query := `UPDATE break_sessions
              SET end_time = $1,
                  duration_seconds = $2
              WHERE id = $3`

	_, err := r.q(ctx).ExecContext(ctx, query, s.EndTime, s.DurationSeconds, s.ID)
	return err
}

func sessionWhere(f SessionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.EmployeeID != "" {
		add("employee_id = $%d", f.EmployeeID)
	}
	if !f.StartFrom.IsZero() {
		add("start_time >= $%d", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		add("start_time < $%d", f.StartTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListWorkSessions returns sessions ordered by start time.
func (r *TimerRepository) ListWorkSessions(ctx context.Context, f SessionFilter) ([]model.WorkSession, error) {
	where, args := sessionWhere(f)
	return r.queryWork(ctx, `SELECT `+workColumns+` FROM work_sessions`+where+` ORDER BY start_time`, args...)
}

func (r *TimerRepository) ListBreakSessions(ctx context.Context, f SessionFilter) ([]model.BreakSession, error) {
	where, args := sessionWhere(f)
	return r.queryBreak(ctx, `SELECT `+breakColumns+` FROM break_sessions`+where+` ORDER BY start_time`, args...)
}

func (r *TimerRepository) ListOpenWorkSessions(ctx context.Context) ([]model.WorkSession, error) {
	return r.queryWork(ctx, `SELECT `+workColumns+` FROM work_sessions WHERE end_time IS NULL ORDER BY start_time`)
}

func (r *TimerRepository) ListOpenBreakSessions(ctx context.Context) ([]model.BreakSession, error) {
	return r.queryBreak(ctx, `SELECT `+breakColumns+` FROM break_sessions WHERE end_time IS NULL ORDER BY start_time`)
}

func (r *TimerRepository) queryWork(ctx context.Context, query string, args ...any) ([]model.WorkSession, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkSession
	for rows.Next() {
		s, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *TimerRepository) queryBreak(ctx context.Context, query string, args ...any) ([]model.BreakSession, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BreakSession
	for rows.Next() {
		s, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const overtimeColumns = `employee_id, date, hours::float8, project, effort, created_at, updated_at`

func scanOvertime(row rowScanner) (*model.Overtime, error) {
	var (
		o    model.Overtime
		date time.Time
	)
	if err := row.Scan(&o.EmployeeID, &date, &o.Hours, &o.Project, &o.Effort, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Date = clock.DateOf(date.UTC())
	return &o, nil
}

func (r *TimerRepository) GetOvertime(ctx context.Context, employeeID string, date clock.Date) (*model.Overtime, error) {
	query := `SELECT ` + overtimeColumns + ` FROM overtime WHERE employee_id = $1 AND date = $2`

	o, err := scanOvertime(r.q(ctx).QueryRowContext(ctx, query, employeeID, date.Midnight()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// UpsertOvertime writes the row for (employee_id, date), keeping created_at on updates.
func (r *TimerRepository) UpsertOvertime(ctx context.Context, o *model.Overtime) error {
	tagEmployee(ctx, o.EmployeeID)

	query := `INSERT INTO overtime (employee_id, date, hours, project, effort, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, now(), now())
              ON CONFLICT (employee_id, date) DO UPDATE SET
                  hours = EXCLUDED.hours,
                  project = EXCLUDED.project,
                  effort = EXCLUDED.effort,
                  updated_at = now()
              RETURNING created_at, updated_at`

	return r.q(ctx).QueryRowContext(ctx, query, o.EmployeeID, o.Date.Midnight(), o.Hours, o.Project, o.Effort).
		Scan(&o.CreatedAt, &o.UpdatedAt)
}

// DeleteOvertime reports whether a row was removed.
func (r *TimerRepository) DeleteOvertime(ctx context.Context, employeeID string, date clock.Date) (bool, error) {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM overtime WHERE employee_id = $1 AND date = $2`, employeeID, date.Midnight())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TimerRepository) ListOvertime(ctx context.Context, f OvertimeFilter) ([]model.Overtime, error) {
	query := `SELECT ` + overtimeColumns + ` FROM overtime WHERE date BETWEEN $1 AND $2`
	args := []any{f.From.Midnight(), f.To.Midnight()}
	if f.EmployeeID != "" {
		query += ` AND employee_id = $3`
		args = append(args, f.EmployeeID)
	}
	query += ` ORDER BY date DESC, employee_id`

	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Overtime
	for rows.Next() {
		o, err := scanOvertime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// mapUniqueViolation turns a hit on the one-open-session indexes into ErrOpenSessionExists.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrOpenSessionExists, pgErr.ConstraintName)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
