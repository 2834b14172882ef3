package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
	"attendance.service/internal/observability"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// SyncRequest selects the employee-days an overtime sync recomputes. An empty
// EmployeeID means every employee with sessions or overtime in the range.
type SyncRequest struct {
	EmployeeID     string
	VerifyEmployee bool
	From           clock.Date
	To             clock.Date
}

// OvertimeCalculator derives overtime rows from completed work sessions.
// Syncing the same day twice with no session changes leaves the same row.
type OvertimeCalculator struct {
	repo      repository.Repository
	clock     *clock.Resolver
	directory Directory
	now       func() time.Time
}

func NewOvertimeCalculator(repo repository.Repository, resolver *clock.Resolver, directory Directory, opts ...Option) *OvertimeCalculator {
	s := buildSettings(opts)
	return &OvertimeCalculator{
		repo:      repo,
		clock:     resolver,
		directory: directory,
		now:       s.now,
	}
}

// Sync recomputes overtime for one employee and local date. Productive time
// strictly above eight hours is upserted; otherwise any existing row is removed.
// A row that already matches is left untouched.
func (c *OvertimeCalculator) Sync(ctx context.Context, employeeID string, date clock.Date) (*model.OvertimeResult, error) {
	now := c.now()
	previous, err := c.repo.GetOvertime(ctx, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get overtime: %w", err)
	}

	start, end := c.clock.DayBounds(date)
	sessions, err := c.repo.ListWorkSessions(ctx, repository.SessionFilter{EmployeeID: employeeID, StartFrom: start, StartTo: end})
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}

	isToday := date == c.clock.Today(now)
	var productive time.Duration
	var projectIDs, taskIDs []string
	for i := range sessions {
		s := &sessions[i]
		if s.IsOpen() && !isToday {
			continue
		}
		productive += s.Elapsed(now)
		if s.ProjectID != nil {
			projectIDs = append(projectIDs, *s.ProjectID)
		}
		if s.TaskID != nil {
			taskIDs = append(taskIDs, *s.TaskID)
		}
	}

	result := &model.OvertimeResult{
		EmployeeID:      employeeID,
		Date:            date,
		ProductiveHours: roundHours(productive.Hours()),
		Previous:        previous,
	}

	if productive <= DailyTarget {
		if previous == nil {
			observability.RecordOvertimeSync("unchanged")
			return result, nil
		}
		removed, err := c.repo.DeleteOvertime(ctx, employeeID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to delete overtime: %w", err)
		}
		result.Removed = removed
		observability.RecordOvertimeSync("removed")
		return result, nil
	}

	projects := c.resolveNames(ctx, projectIDs, c.projectNames)
	tasks := c.resolveNames(ctx, taskIDs, c.taskNames)

	ot := &model.Overtime{
		EmployeeID: employeeID,
		Date:       date,
		Hours:      roundHours((productive - DailyTarget).Hours()),
		Project:    multipleProjects,
		Effort:     fmt.Sprintf("Projects: %s\nTasks: %s", joinOrNA(projects), joinOrNA(tasks)),
	}
	if len(projects) > 0 {
		ot.Project = projects[0]
	}
	if sameOvertime(previous, ot) {
		observability.RecordOvertimeSync("unchanged")
		result.Overtime = previous
		return result, nil
	}
	if err := c.repo.UpsertOvertime(ctx, ot); err != nil {
		return nil, fmt.Errorf("failed to upsert overtime: %w", err)
	}
	observability.RecordOvertimeSync("upserted")
	result.Overtime = ot
	return result, nil
}

// SyncRange recomputes every affected employee-day in [From, To] and returns
// how many days ended up with an overtime row.
func (c *OvertimeCalculator) SyncRange(ctx context.Context, req SyncRequest) (int, error) {
	if err := validateRange(req.From, req.To); err != nil {
		return 0, err
	}
	if req.EmployeeID != "" && req.VerifyEmployee {
		if err := c.ensureEmployee(ctx, req.EmployeeID); err != nil {
			return 0, err
		}
	}

	days, err := c.affectedDays(ctx, req)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, k := range days {
		res, err := c.Sync(ctx, k.employeeID, k.date)
		if err != nil {
			return updated, fmt.Errorf("sync %s on %s: %w", k.employeeID, k.date, err)
		}
		if res.Overtime != nil {
			updated++
		}
	}

	log.Ctx(ctx).Info().
		Str("employeeId", req.EmployeeID).
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Int("days", len(days)).
		Int("updated", updated).
		Msg("Overtime sync completed")
	return updated, nil
}

// SyncMonth is SyncRange over a calendar month.
func (c *OvertimeCalculator) SyncMonth(ctx context.Context, employeeID string, verify bool, year int, month time.Month) (int, error) {
	if month < time.January || month > time.December {
		return 0, model.ErrInvalidDateRange
	}
	from, to := clock.MonthRange(year, month)
	return c.SyncRange(ctx, SyncRequest{EmployeeID: employeeID, VerifyEmployee: verify, From: from, To: to})
}

// affectedDays lists the employee-days with work sessions or an existing
// overtime row. Every other day would sync to "no row" and is skipped.
func (c *OvertimeCalculator) affectedDays(ctx context.Context, req SyncRequest) ([]dayKey, error) {
	start, end := c.clock.RangeBounds(req.From, req.To)
	sessions, err := c.repo.ListWorkSessions(ctx, repository.SessionFilter{EmployeeID: req.EmployeeID, StartFrom: start, StartTo: end})
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	existing, err := c.repo.ListOvertime(ctx, repository.OvertimeFilter{EmployeeID: req.EmployeeID, From: req.From, To: req.To})
	if err != nil {
		return nil, fmt.Errorf("failed to list overtime: %w", err)
	}

	seen := make(map[dayKey]struct{})
	for _, s := range sessions {
		seen[dayKey{s.EmployeeID, c.clock.LocalDate(s.StartTime)}] = struct{}{}
	}
	for _, o := range existing {
		seen[dayKey{o.EmployeeID, o.Date}] = struct{}{}
	}

	days := make([]dayKey, 0, len(seen))
	for k := range seen {
		days = append(days, k)
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].date != days[j].date {
			return days[i].date.Before(days[j].date)
		}
		return days[i].employeeID < days[j].employeeID
	})
	return days, nil
}

func (c *OvertimeCalculator) ensureEmployee(ctx context.Context, employeeID string) error {
	if c.directory == nil {
		return nil
	}
	ok, err := c.directory.EmployeeExists(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("failed to look up employee: %w", err)
	}
	if !ok {
		return model.ErrEmployeeNotFound
	}
	return nil
}

func (c *OvertimeCalculator) projectNames(ctx context.Context, ids []string) (map[string]string, error) {
	return c.directory.ProjectNames(ctx, ids)
}

func (c *OvertimeCalculator) taskNames(ctx context.Context, ids []string) (map[string]string, error) {
	return c.directory.TaskNames(ctx, ids)
}

// resolveNames maps ids to display names, deduplicated and sorted. An id the
// directory cannot name is reported as-is.
func (c *OvertimeCalculator) resolveNames(ctx context.Context, ids []string, lookup func(context.Context, []string) (map[string]string, error)) []string {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	keys := make([]string, 0, len(unique))
	for id := range unique {
		keys = append(keys, id)
	}

	var names map[string]string
	if c.directory != nil {
		var err error
		names, err = lookup(ctx, keys)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Directory lookup failed, using ids as names")
		}
	}

	set := make(map[string]struct{}, len(keys))
	for _, id := range keys {
		name := names[id]
		if name == "" {
			name = id
		}
		set[name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sameOvertime(a, b *model.Overtime) bool {
	return a != nil && b != nil && a.Hours == b.Hours && a.Project == b.Project && a.Effort == b.Effort
}

func joinOrNA(names []string) string {
	if len(names) == 0 {
		return notApplicable
	}
	return strings.Join(names, ", ")
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
