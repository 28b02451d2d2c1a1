/*
disbursement.go - Disbursement report handed to the finance ledger

PURPOSE:
  Projects an approved PayrollRun into a DisbursementReport: one ledger
  entry per line, totals copied from the run. Nothing is recomputed, so the
  report can always be re-derived from its run without drift.

LIFECYCLE:
  Report:  Approved -> Disbursed | Failed      (both terminal)
  Entry:   Pending  -> Success   | Failed      (both terminal)

  The report leaves Approved once no entry is Pending: Disbursed when every
  entry succeeded, Failed when at least one did not.

IDEMPOTENCY:
  Updates are keyed by (batchId, employeeId). Re-applying the status an
  entry already has is a no-op. DisbursedAmount and FailedAmount are
  recomputed from the entries after every update, never incremented.

SEE ALSO:
  - run.go: Builds the PayrollRun
  - store/sqlite: Persists reports and applies updates in a transaction
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUSES
// =============================================================================

type ReportStatus string

const (
	ReportApproved  ReportStatus = "Approved"
	ReportDisbursed ReportStatus = "Disbursed"
	ReportFailed    ReportStatus = "Failed"
)

// Terminal reports whether no further change is allowed.
func (s ReportStatus) Terminal() bool {
	return s == ReportDisbursed || s == ReportFailed
}

type EntryStatus string

const (
	EntryPending EntryStatus = "Pending"
	EntrySuccess EntryStatus = "Success"
	EntryFailed  EntryStatus = "Failed"
)

// Terminal reports whether no further change is allowed.
func (s EntryStatus) Terminal() bool {
	return s == EntrySuccess || s == EntryFailed
}

type DisbursementMethod string

const (
	MethodBankTransfer DisbursementMethod = "BankTransfer"
	MethodMobileMoney  DisbursementMethod = "MobileMoney"
	MethodCheque       DisbursementMethod = "Cheque"
	MethodCash         DisbursementMethod = "Cash"
)

// Valid reports whether m is a known method.
func (m DisbursementMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodMobileMoney, MethodCheque, MethodCash:
		return true
	}
	return false
}

// =============================================================================
// REPORT
// =============================================================================

// Approval carries who approved a run and how it will be paid.
type Approval struct {
	ApprovedBy       string
	ApprovedAt       time.Time
	DisbursementDate time.Time
	Method           DisbursementMethod
	Notes            string
}

// LedgerEntry is one employee's payment in the report.
type LedgerEntry struct {
	EmployeeID         string          `json:"employeeId"`
	EmployeeName       string          `json:"employeeName"`
	NetSalary          decimal.Decimal `json:"netSalary"`
	AccountNumber      string          `json:"accountNumber,omitempty"`
	DisbursementStatus EntryStatus     `json:"disbursementStatus"`
	Reference          string          `json:"reference,omitempty"`
}

// DisbursementReport is the contract handed to the external finance ledger.
type DisbursementReport struct {
	BatchID            string             `json:"batchId"`
	Period             PayPeriod          `json:"period"`
	TotalEmployees     int                `json:"totalEmployees"`
	TotalGrossAmount   decimal.Decimal    `json:"totalGrossAmount"`
	TotalDeductions    decimal.Decimal    `json:"totalDeductions"`
	TotalNetAmount     decimal.Decimal    `json:"totalNetAmount"`
	ApprovedBy         string             `json:"approvedBy"`
	ApprovedDate       time.Time          `json:"approvedDate"`
	DisbursementDate   time.Time          `json:"disbursementDate"`
	DisbursementMethod DisbursementMethod `json:"disbursementMethod"`
	Status             ReportStatus       `json:"status"`
	Employees          []LedgerEntry      `json:"employees"`
	Notes              string             `json:"notes,omitempty"`

	// Derived from Employees after every update.
	DisbursedAmount decimal.Decimal `json:"disbursedAmount"`
	FailedAmount    decimal.Decimal `json:"failedAmount"`
}

// Clone returns a deep copy of the report.
func (r DisbursementReport) Clone() DisbursementReport {
	out := r
	out.Employees = append([]LedgerEntry(nil), r.Employees...)
	return out
}

// BuildDisbursementReport projects an approved run into a report.
func BuildDisbursementReport(run PayrollRun, approval Approval) (DisbursementReport, error) {
	if run.Status != RunApproved {
		return DisbursementReport{}, ErrRunNotApproved
	}
	if len(run.Lines) == 0 {
		return DisbursementReport{}, fmt.Errorf("%w: batch %s has no lines", ErrEmptyRoster, run.BatchID)
	}
	if approval.ApprovedBy == "" {
		return DisbursementReport{}, ErrMissingApprover
	}
	if !approval.Method.Valid() {
		return DisbursementReport{}, fmt.Errorf("%w: %q", ErrInvalidMethod, approval.Method)
	}

	report := DisbursementReport{
		BatchID:            run.BatchID,
		Period:             run.Period,
		TotalEmployees:     run.Totals.Employees,
		TotalGrossAmount:   run.Totals.GrossSalary,
		TotalDeductions:    run.Totals.TotalDeductions,
		TotalNetAmount:     run.Totals.NetSalary,
		ApprovedBy:         approval.ApprovedBy,
		ApprovedDate:       approval.ApprovedAt,
		DisbursementDate:   approval.DisbursementDate,
		DisbursementMethod: approval.Method,
		Status:             ReportApproved,
		Employees:          make([]LedgerEntry, 0, len(run.Lines)),
		Notes:              approval.Notes,
		DisbursedAmount:    decimal.Zero,
		FailedAmount:       decimal.Zero,
	}
	for _, l := range run.Lines {
		report.Employees = append(report.Employees, LedgerEntry{
			EmployeeID:         l.EmployeeID,
			EmployeeName:       l.EmployeeName,
			NetSalary:          l.NetSalary,
			AccountNumber:      l.AccountNumber,
			DisbursementStatus: EntryPending,
		})
	}
	return report, nil
}

// VerifyAgainstRun checks the report is still an exact projection of run.
func (r DisbursementReport) VerifyAgainstRun(run PayrollRun) error {
	if r.BatchID != run.BatchID || r.Period != run.Period {
		return fmt.Errorf("%w: report %s/%s, run %s/%s", ErrBatchMismatch, r.BatchID, r.Period, run.BatchID, run.Period)
	}
	if r.TotalEmployees != run.Totals.Employees ||
		!r.TotalGrossAmount.Equal(run.Totals.GrossSalary) ||
		!r.TotalDeductions.Equal(run.Totals.TotalDeductions) ||
		!r.TotalNetAmount.Equal(run.Totals.NetSalary) {
		return fmt.Errorf("report %s totals drifted from run", r.BatchID)
	}
	if len(r.Employees) != len(run.Lines) {
		return fmt.Errorf("report %s has %d entries, run has %d lines", r.BatchID, len(r.Employees), len(run.Lines))
	}
	for i, e := range r.Employees {
		l := run.Lines[i]
		if e.EmployeeID != l.EmployeeID || !e.NetSalary.Equal(l.NetSalary) {
			return fmt.Errorf("report %s entry %d (%s) drifted from run", r.BatchID, i, e.EmployeeID)
		}
	}
	return nil
}

// =============================================================================
// DISBURSEMENT UPDATES
// =============================================================================

// DisbursementUpdate is the second-stage outcome for one employee.
type DisbursementUpdate struct {
	BatchID    string      `json:"batchId"`
	EmployeeID string      `json:"employeeId"`
	Status     EntryStatus `json:"status"`
	Reference  string      `json:"reference,omitempty"`
}

// ApplyDisbursementUpdate returns the report with update applied and whether
// anything changed. The input report is not modified.
func ApplyDisbursementUpdate(report DisbursementReport, update DisbursementUpdate) (DisbursementReport, bool, error) {
	if update.BatchID != report.BatchID {
		return report, false, fmt.Errorf("%w: update for %q applied to %q", ErrBatchMismatch, update.BatchID, report.BatchID)
	}
	idx := -1
	for i, e := range report.Employees {
		if e.EmployeeID == update.EmployeeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return report, false, fmt.Errorf("%w: %s in %s", ErrUnknownEmployee, update.EmployeeID, report.BatchID)
	}

	current := report.Employees[idx].DisbursementStatus
	if !update.Status.Terminal() {
		return report, false, &TransitionError{
			BatchID: update.BatchID, EmployeeID: update.EmployeeID,
			From: string(current), To: string(update.Status), Err: ErrInvalidTransition,
		}
	}
	if current == update.Status {
		return report, false, nil
	}
	if current.Terminal() {
		return report, false, &TransitionError{
			BatchID: update.BatchID, EmployeeID: update.EmployeeID,
			From: string(current), To: string(update.Status), Err: ErrTerminalStatus,
		}
	}

	out := report.Clone()
	out.Employees[idx].DisbursementStatus = update.Status
	if update.Reference != "" {
		out.Employees[idx].Reference = update.Reference
	}
	out.settle()
	return out, true, nil
}

// settle recomputes the derived amounts and the report status from the entries.
func (r *DisbursementReport) settle() {
	disbursed, failed := decimal.Zero, decimal.Zero
	pending, anyFailed := 0, false
	for _, e := range r.Employees {
		switch e.DisbursementStatus {
		case EntrySuccess:
			disbursed = disbursed.Add(e.NetSalary)
		case EntryFailed:
			failed = failed.Add(e.NetSalary)
			anyFailed = true
		default:
			pending++
		}
	}
	r.DisbursedAmount = disbursed
	r.FailedAmount = failed

	switch {
	case pending > 0:
		r.Status = ReportApproved
	case anyFailed:
		r.Status = ReportFailed
	default:
		r.Status = ReportDisbursed
	}
}
