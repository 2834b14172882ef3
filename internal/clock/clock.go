// Package clock resolves UTC instants against the organization's local time zone.
// Every business rule that talks about "today", a time of day or a calendar date
// goes through a Resolver; storage keeps UTC instants.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// ErrZoneFallback is returned by Load when the configured zone cannot be resolved
// and UTC is used as the local zone instead.
var ErrZoneFallback = errors.New("time zone could not be loaded, falling back to UTC")

// Resolver converts between UTC instants and local dates/times of day.
type Resolver struct {
	loc *time.Location
}

// New creates a resolver for the given location. A nil location means UTC.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Load resolves an IANA zone name. On failure it still returns a usable UTC
// resolver together with an error wrapping ErrZoneFallback.
func Load(name string) (*Resolver, error) {
	if name == "" {
		return New(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return New(time.UTC), fmt.Errorf("%w: %q: %v", ErrZoneFallback, name, err)
	}
	return New(loc), nil
}

// Location returns the organization zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// ToLocal splits an instant into its local date and time of day.
func (r *Resolver) ToLocal(t time.Time) (Date, TimeOfDay) {
	lt := t.In(r.loc)
	return DateOf(lt), TimeOfDayOf(lt)
}

// LocalDate is the local calendar date an instant falls on.
func (r *Resolver) LocalDate(t time.Time) Date {
	return DateOf(t.In(r.loc))
}

// Today is the local date for now.
func (r *Resolver) Today(now time.Time) Date {
	return r.LocalDate(now)
}

// DayBounds returns the half-open UTC interval [start, end) covering the local date.
func (r *Resolver) DayBounds(d Date) (time.Time, time.Time) {
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, r.loc)
	next := d.AddDays(1)
	end := time.Date(next.Year, next.Month, next.Day, 0, 0, 0, 0, r.loc)
	return start.UTC(), end.UTC()
}

// RangeBounds returns the half-open UTC interval covering every local date in [from, to].
func (r *Resolver) RangeBounds(from, to Date) (time.Time, time.Time) {
	start, _ := r.DayBounds(from)
	_, end := r.DayBounds(to)
	return start, end
}

// EndOfDay is 23:59:59 local on the given date, as a UTC instant.
func (r *Resolver) EndOfDay(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, r.loc).UTC()
}

// FormatClock renders an instant as local "15:04".
func (r *Resolver) FormatClock(t time.Time) string {
	return t.In(r.loc).Format("15:04")
}

// FormatDisplay renders an instant as local "03:04 PM".
func (r *Resolver) FormatDisplay(t time.Time) string {
	return t.In(r.loc).Format("03:04 PM")
}
