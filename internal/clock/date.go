package clock

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf takes the calendar fields of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (Date, Date) {
	first := Date{Year: year, Month: month, Day: 1}
	return first, first.AddMonths(1).AddDays(-1)
}

func (d Date) String() string {
	return d.Midnight().Format(dateLayout)
}

// Midnight is 00:00 UTC on the date. Used for DATE columns and arithmetic only.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight().AddDate(0, 0, n))
}

func (d Date) AddMonths(n int) Date {
	return DateOf(d.Midnight().AddDate(0, n, 0))
}

func (d Date) Before(o Date) bool {
	return d.Midnight().Before(o.Midnight())
}

func (d Date) After(o Date) bool {
	return d.Midnight().After(o.Midnight())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// DaysUntil counts calendar days from d to o; negative when o is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.Midnight().Sub(d.Midnight()).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Compare returns -1, 0 or 1.
func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch a, b := t.seconds(), o.seconds(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}
