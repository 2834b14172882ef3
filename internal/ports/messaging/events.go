package messaging

import "time"

// DayClosedEvent is published to the attendance events queue after a check-out
// commits. Reporting and notification consumers subscribe to it.
type DayClosedEvent struct {
	EmployeeID        string    `json:"employeeId"`
	Date              string    `json:"date"`
	Status            string    `json:"status"`
	ClockIn           time.Time `json:"clockIn"`
	ClockOut          time.Time `json:"clockOut"`
	ProductiveSeconds int64     `json:"productiveSeconds"`
	BreakSeconds      int64     `json:"breakSeconds"`
	SupportSeconds    int64     `json:"supportSeconds"`
}

// OvertimeSyncRequest asks the overtime worker to recompute overtime for a single
// date or for a whole month. An empty EmployeeID means every employee.
type OvertimeSyncRequest struct {
	EmployeeID  string    `json:"employeeId,omitempty"`
	Date        string    `json:"date,omitempty"`
	Month       int       `json:"month,omitempty"`
	Year        int       `json:"year,omitempty"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}
