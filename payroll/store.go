/*
store.go - Persistence contract the host implements

PURPOSE:
  The engine itself never stores anything. The host keeps employees,
  built runs and disbursement reports behind these interfaces so that
  HTTP handlers and the CLI share one contract.

APPEND-ONLY CONTRACT:
  - SaveRun writes a run once. A second write of the same BatchID fails
    with ErrDuplicateBatch.
  - SaveApproval marks the run approved and stores its report atomically.
    A run can be approved once (ErrAlreadyApproved).
  - ApplyDisbursement runs ApplyDisbursementUpdate under the store's own
    transaction and records the update keyed by (batchId, employeeId).
    Replaying an update returns changed == false.
  - ListUpdates returns the applied updates for a batch, oldest first.
    Rejected and replayed updates are not listed.

IMPLEMENTATIONS:
  - store/memory: In-memory, for tests and the CLI
  - store/sqlite: SQLite
*/
package payroll

import "context"

// EmployeeStore keeps the roster. ListEmployees returns roster order.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// RunStore keeps built runs and their disbursement reports.
type RunStore interface {
	SaveRun(ctx context.Context, run PayrollRun) error
	GetRun(ctx context.Context, batchID string) (PayrollRun, error)
	ListRuns(ctx context.Context) ([]PayrollRun, error)

	SaveApproval(ctx context.Context, run PayrollRun, report DisbursementReport) error
	GetReport(ctx context.Context, batchID string) (DisbursementReport, error)
	ApplyDisbursement(ctx context.Context, update DisbursementUpdate) (DisbursementReport, bool, error)
	ListUpdates(ctx context.Context, batchID string) ([]DisbursementUpdate, error)
}

// Store is everything the host needs.
type Store interface {
	EmployeeStore
	RunStore
}
