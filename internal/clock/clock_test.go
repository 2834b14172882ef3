package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kolkata(t *testing.T) *Resolver {
	t.Helper()
	r, err := Load("Asia/Kolkata")
	require.NoError(t, err)
	return r
}

func TestToLocalUsesOrganizationZone(t *testing.T) {
	r := kolkata(t)

	// 04:00 UTC is 09:30 in Kolkata.
	date, tod := r.ToLocal(time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC))

	assert.Equal(t, Date{2025, time.March, 10}, date)
	assert.Equal(t, TimeOfDay{9, 30, 0}, tod)
}

func TestLocalDateCrossesUTCMidnight(t *testing.T) {
	r := kolkata(t)

	// 20:00 UTC on the 10th is already the 11th locally.
	assert.Equal(t, Date{2025, time.March, 11}, r.LocalDate(time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)))
}

func TestDayBoundsAreHalfOpenLocalMidnights(t *testing.T) {
	r := kolkata(t)

	start, end := r.DayBounds(Date{2025, time.March, 10})

	assert.Equal(t, time.Date(2025, 3, 9, 18, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC), end)
}

func TestEndOfDay(t *testing.T) {
	r := kolkata(t)

	got := r.EndOfDay(Date{2025, time.March, 10})

	assert.Equal(t, time.Date(2025, 3, 10, 18, 29, 59, 0, time.UTC), got)
	assert.Equal(t, Date{2025, time.March, 10}, r.LocalDate(got))
}

func TestLoadUnknownZoneFallsBackToUTC(t *testing.T) {
	r, err := Load("Mars/Olympus_Mons")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrZoneFallback))
	require.NotNil(t, r)
	assert.Equal(t, time.UTC, r.Location())
}

func TestFormatting(t *testing.T) {
	r := kolkata(t)
	instant := time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC)

	assert.Equal(t, "15:15", r.FormatClock(instant))
	assert.Equal(t, "03:15 PM", r.FormatDisplay(instant))
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, 2, d.DaysUntil(Date{2024, time.March, 1}))
	assert.True(t, d.Before(d.AddDays(1)))

	first, last := MonthRange(2024, time.February)
	assert.Equal(t, "2024-02-01", first.String())
	assert.Equal(t, "2024-02-29", last.String())

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestTimeOfDayCompare(t *testing.T) {
	cutoff := TimeOfDay{9, 30, 0}

	assert.Equal(t, 0, TimeOfDay{9, 30, 0}.Compare(cutoff))
	assert.Equal(t, 1, TimeOfDay{9, 30, 1}.Compare(cutoff))
	assert.Equal(t, -1, TimeOfDay{9, 29, 59}.Compare(cutoff))
}
