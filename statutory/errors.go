package statutory

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSchedule is returned when no statutory schedule covers the requested tax year.
	ErrNoSchedule = errors.New("no statutory schedule for tax year")

	// ErrInvalidSchedule is returned when a schedule definition is malformed.
	ErrInvalidSchedule = errors.New("invalid statutory schedule")
)

// ScheduleError describes why a schedule was rejected.
type ScheduleError struct {
	Version string
	Reason  string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid statutory schedule %q: %s", e.Version, e.Reason)
}

func (e *ScheduleError) Unwrap() error {
	return ErrInvalidSchedule
}

// NoScheduleError carries the tax year that could not be resolved.
type NoScheduleError struct {
	Year int
}

func (e *NoScheduleError) Error() string {
	return fmt.Sprintf("no statutory schedule for tax year %d", e.Year)
}

func (e *NoScheduleError) Unwrap() error {
	return ErrNoSchedule
}
