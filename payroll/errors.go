/*
errors.go - Error taxonomy for the payroll engine

ERROR CATEGORIES:
  1. Per-employee errors - InvalidCompensation. The employee is skipped,
     the run continues.
  2. Per-invocation errors - EmptyRoster, InvalidPeriod. No run is built.
  3. Disbursement errors - RunNotApproved, TerminalStatus, UnknownEmployee.

NOT ERRORS:
  - Contributions above a statutory cap are clamped silently.
  - Post-relief tax below zero is floored at zero.

USAGE:
  run, err := processor.Process(roster, period)
  if errors.Is(err, payroll.ErrEmptyRoster) {
      // nothing to pay this month
  }
*/
package payroll

import (
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidCompensation is returned when basic salary is missing or any amount is negative.
	ErrInvalidCompensation = errors.New("invalid compensation")

	// ErrEmptyRoster is returned when a run has no active employees to pay.
	ErrEmptyRoster = errors.New("no active employees in roster")

	// ErrInvalidPeriod is returned for a malformed pay period or tax year.
	ErrInvalidPeriod = errors.New("invalid pay period")

	// ErrRunNotApproved is returned when building a disbursement report from an unapproved run.
	ErrRunNotApproved = errors.New("payroll run is not approved")

	// ErrMissingApprover is returned when approval carries no approver identity.
	ErrMissingApprover = errors.New("approver identity is required")

	// ErrInvalidMethod is returned for an unknown disbursement method.
	ErrInvalidMethod = errors.New("unknown disbursement method")

	// ErrTerminalStatus is returned when changing an entry or report that is already final.
	ErrTerminalStatus = errors.New("disbursement status is terminal")

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid disbursement status transition")

	// ErrUnknownEmployee is returned when an update names an employee not in the report.
	ErrUnknownEmployee = errors.New("employee not in disbursement report")

	// ErrBatchMismatch is returned when an update targets a different batch.
	ErrBatchMismatch = errors.New("disbursement update batch mismatch")

	// ErrRunNotFound and ErrReportNotFound are returned by stores.
	ErrRunNotFound    = errors.New("payroll run not found")
	ErrReportNotFound = errors.New("disbursement report not found")

	// ErrEmployeeNotFound is returned by employee stores.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateBatch is returned when a batch id is stored twice.
	ErrDuplicateBatch = errors.New("payroll run already exists")

	// ErrAlreadyApproved is returned when a run already has a disbursement report.
	ErrAlreadyApproved = errors.New("payroll run already approved")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidCompensationError names the offending field.
type InvalidCompensationError struct {
	EmployeeID string
	Field      string
	Reason     string
}

func (e *InvalidCompensationError) Error() string {
	if e.EmployeeID == "" {
		return fmt.Sprintf("invalid compensation: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid compensation for %s: %s %s", e.EmployeeID, e.Field, e.Reason)
}

func (e *InvalidCompensationError) Unwrap() error {
	return ErrInvalidCompensation
}

// InvalidPeriodError carries the rejected input.
type InvalidPeriodError struct {
	Input string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid pay period %q (want YYYY-MM)", e.Input)
}

func (e *InvalidPeriodError) Unwrap() error {
	return ErrInvalidPeriod
}

// TransitionError describes a refused disbursement status change.
type TransitionError struct {
	BatchID    string
	EmployeeID string
	From       string
	To         string
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s/%s: cannot move %s -> %s: %v", e.BatchID, e.EmployeeID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCompensation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingApprover) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrBatchMismatch) ||
		errors.Is(err, statutory.ErrNoSchedule)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTerminalStatus) ||
		errors.Is(err, ErrDuplicateBatch) ||
		errors.Is(err, ErrAlreadyApproved) ||
		errors.Is(err, ErrRunNotApproved)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrUnknownEmployee)
}
