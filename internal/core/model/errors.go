package model

import "errors"

// Timer and attendance errors. All of them are user-facing and recoverable.
var (
	ErrNotCheckedIn        = errors.New("you haven't checked in today")
	ErrAlreadyCheckedOut   = errors.New("you have already checked out today")
	ErrNoActiveWorkSession = errors.New("no active work session")
	ErrNoActiveBreak       = errors.New("no active break")
	ErrInvalidBreakType    = errors.New("invalid break type")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrInvalidStatus       = errors.New("status must be one of: leave, holiday")
)
