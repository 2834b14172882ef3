package core

import (
	"fmt"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core/model"
)

var (
	onTimeCutoff  = clock.TimeOfDay{Hour: 9, Minute: 30}
	halfDayCutoff = clock.TimeOfDay{Hour: 14}
)

const (
	// DailyTarget is the productive time expected per day; overtime starts after it.
	DailyTarget       = 8 * time.Hour
	targetHoursLabel  = "08:00:00"
	multipleProjects  = "Multiple Projects"
	notApplicable     = "N/A"
	maxReportingRange = 366
)

// ClassifyCheckIn derives the attendance status from the local check-in time.
// 09:30:00 is still on time and 14:00:00 is a plain half day; anything after
// either cutoff is late.
func ClassifyCheckIn(local clock.TimeOfDay) (status model.AttendanceStatus, isLate, isHalfDay bool) {
	switch {
	case local.Compare(onTimeCutoff) <= 0:
		return model.StatusPresent, false, false
	case local.Compare(halfDayCutoff) < 0:
		return model.StatusLate, true, false
	case local.Compare(halfDayCutoff) == 0:
		return model.StatusHalfDay, false, true
	default:
		return model.StatusHalfDayLate, true, true
	}
}

// FormatSeconds renders a duration as H:MM:SS.
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
