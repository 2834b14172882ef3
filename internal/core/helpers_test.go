package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDirectory struct {
	employees map[string]bool
	projects  map[string]string
	tasks     map[string]string
	err       error
}

func (d *fakeDirectory) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.employees[employeeID], nil
}

func (d *fakeDirectory) ActiveEmployees(ctx context.Context) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []string
	for id, active := range d.employees {
		if active {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ProjectNames(ctx context.Context, ids []string) (map[string]string, error) {
	return d.lookup(d.projects, ids)
}

func (d *fakeDirectory) TaskNames(ctx context.Context, ids []string) (map[string]string, error) {
	return d.lookup(d.tasks, ids)
}

func (d *fakeDirectory) lookup(src map[string]string, ids []string) (map[string]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := src[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	dayClosed []messaging.DayClosedEvent
	syncs     []messaging.OvertimeSyncRequest
	err       error
}

func (p *recordingPublisher) PublishDayClosed(ctx context.Context, event messaging.DayClosedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.dayClosed = append(p.dayClosed, event)
	return nil
}

func (p *recordingPublisher) PublishOvertimeSync(ctx context.Context, req messaging.OvertimeSyncRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.syncs = append(p.syncs, req)
	return nil
}

var errBoom = errors.New("boom")

type fixture struct {
	repo      *repository.InMemoryRepository
	clock     *clock.Resolver
	now       *fakeClock
	directory *fakeDirectory
	publisher *recordingPublisher
	timer     *TimerService
	agg       *AggregationEngine
	overtime  *OvertimeCalculator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resolver, err := clock.Load("Asia/Kolkata")
	require.NoError(t, err)

	f := &fixture{
		repo:  repository.NewInMemoryRepository(),
		clock: resolver,
		now:   &fakeClock{},
		directory: &fakeDirectory{
			employees: map[string]bool{"emp-1": true, "emp-2": true},
			projects:  map[string]string{"p-1": "Apollo", "p-2": "Zephyr"},
			tasks:     map[string]string{"t-1": "Design", "t-2": "Review"},
		},
		publisher: &recordingPublisher{},
	}
	opts := []Option{WithNow(f.now.Now)}
	f.agg = NewAggregationEngine(f.repo, resolver, f.directory, opts...)
	f.timer = NewTimerService(f.repo, resolver, f.agg, f.publisher, opts...)
	f.overtime = NewOvertimeCalculator(f.repo, resolver, f.directory, opts...)
	return f
}

// local returns the UTC instant for a wall-clock time in Asia/Kolkata.
func (f *fixture) local(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, f.clock.Location()).UTC()
}

func strPtr(s string) *string { return &s }

func sessionsOf(employeeID string) repository.SessionFilter {
	return repository.SessionFilter{EmployeeID: employeeID}
}

// at moves the fake clock to a local wall-clock time.
func (f *fixture) at(year int, month time.Month, day, hour, min, sec int) time.Time {
	t := f.local(year, month, day, hour, min, sec)
	f.now.Set(t)
	return t
}

func overtimeFor(employeeID string, from, to clock.Date) repository.OvertimeFilter {
	return repository.OvertimeFilter{EmployeeID: employeeID, From: from, To: to}
}
