package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Directory is the slice of the HR/project directory the timer engine reads.
type Directory interface {
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)
	ActiveEmployees(ctx context.Context) ([]string, error)
	ProjectNames(ctx context.Context, ids []string) (map[string]string, error)
	TaskNames(ctx context.Context, ids []string) (map[string]string, error)
}

type settings struct {
	now   func() time.Time
	newID func() string
}

// Option customizes a service. Tests use it to pin the clock.
type Option func(*settings)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

func buildSettings(opts []Option) settings {
	s := settings{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
