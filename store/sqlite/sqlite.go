/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Persists the roster, built payroll runs, disbursement reports and the
  per-employee disbursement updates fed back by the finance ledger.

APPEND-ONLY ENFORCEMENT:
  - payroll_runs.batch_id is UNIQUE. A second SaveRun of a batch fails with
    payroll.ErrDuplicateBatch; a run is never recomputed in place.
  - The only change a run ever sees is Processed -> Approved, written in
    the same transaction as its disbursement report.
  - disbursement_updates is keyed by (batch_id, employee_id). An entry moves
    to a terminal status once, so each key is written at most once.

KEY TABLES:
  employees:             Roster, JSON document per employee, insertion order kept
  payroll_runs:          Built runs (JSON) with period and status columns
  disbursement_reports:  One report per approved run
  disbursement_updates:  Audit of applied ledger callbacks

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so ":memory:"
  databases survive across calls.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Roster; seq keeps insertion order across upserts
	CREATE TABLE IF NOT EXISTS employees (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payroll runs (build once)
	CREATE TABLE IF NOT EXISTS payroll_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL UNIQUE,
		period TEXT NOT NULL,
		status TEXT NOT NULL,
		schedule_version TEXT NOT NULL,
		total_net TEXT NOT NULL,
		run_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_runs_period
		ON payroll_runs(period);

	-- Disbursement reports, one per approved run
	CREATE TABLE IF NOT EXISTS disbursement_reports (
		batch_id TEXT PRIMARY KEY REFERENCES payroll_runs(batch_id),
		status TEXT NOT NULL,
		report_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Applied ledger callbacks
	CREATE TABLE IF NOT EXISTS disbursement_updates (
		batch_id TEXT NOT NULL REFERENCES disbursement_reports(batch_id),
		employee_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT,
		applied_at TEXT NOT NULL,
		UNIQUE (batch_id, employee_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee inserts or replaces an employee. Replacing keeps roster position.
func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(emp)
	if err != nil {
		return fmt.Errorf("failed to encode employee %s: %w", emp.ID, err)
	}

	query := `
		INSERT INTO employees (id, status, data_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		emp.ID, string(emp.Status), string(data),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", emp.ID, err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data_json FROM employees WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Employee{}, fmt.Errorf("%w: %s", payroll.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return payroll.Employee{}, err
	}

	var emp payroll.Employee
	if err := json.Unmarshal([]byte(data), &emp); err != nil {
		return payroll.Employee{}, fmt.Errorf("failed to decode employee %s: %w", id, err)
	}
	return emp, nil
}

// ListEmployees returns the roster in insertion order.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT data_json FROM employees ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []payroll.Employee{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var emp payroll.Employee
		if err := json.Unmarshal([]byte(data), &emp); err != nil {
			return nil, fmt.Errorf("failed to decode employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// RUN STORE
// =============================================================================

// SaveRun stores a built run. Append-only.
func (s *Store) SaveRun(ctx context.Context, run payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.BatchID, err)
	}

	query := `
		INSERT INTO payroll_runs
		(batch_id, period, status, schedule_version, total_net, run_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.BatchID,
		run.Period.String(),
		string(run.Status),
		run.ScheduleVersion,
		run.Totals.NetSalary.String(),
		string(data),
		run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", payroll.ErrDuplicateBatch, run.BatchID)
		}
		return fmt.Errorf("failed to save run %s: %w", run.BatchID, err)
	}
	return nil
}

// GetRun retrieves a run by batch id.
func (s *Store) GetRun(ctx context.Context, batchID string) (payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getRun(ctx, s.db, batchID)
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT run_json FROM payroll_runs ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []payroll.PayrollRun{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var run payroll.PayrollRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveApproval flips the run to Approved and stores its report in one
// database transaction.
func (s *Store) SaveApproval(ctx context.Context, run payroll.PayrollRun, report payroll.DisbursementReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.BatchID != run.BatchID {
		return fmt.Errorf("%w: report %s for run %s", payroll.ErrBatchMismatch, report.BatchID, run.BatchID)
	}
	runData, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.BatchID, err)
	}
	reportData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.BatchID, err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var status string
	err = sqlTx.QueryRowContext(ctx, "SELECT status FROM payroll_runs WHERE batch_id = ?", run.BatchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", payroll.ErrRunNotFound, run.BatchID)
	}
	if err != nil {
		return err
	}
	if payroll.RunStatus(status) == payroll.RunApproved {
		return fmt.Errorf("%w: %s", payroll.ErrAlreadyApproved, run.BatchID)
	}

	_, err = sqlTx.ExecContext(ctx,
		"UPDATE payroll_runs SET status = ?, run_json = ? WHERE batch_id = ?",
		string(run.Status), string(runData), run.BatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to approve run %s: %w", run.BatchID, err)
	}

	_, err = sqlTx.ExecContext(ctx,
		"INSERT INTO disbursement_reports (batch_id, status, report_json, updated_at) VALUES (?, ?, ?, ?)",
		report.BatchID, string(report.Status), string(reportData),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", payroll.ErrAlreadyApproved, run.BatchID)
		}
		return fmt.Errorf("failed to save report %s: %w", report.BatchID, err)
	}

	return sqlTx.Commit()
}

// GetReport retrieves the disbursement report for a batch.
func (s *Store) GetReport(ctx context.Context, batchID string) (payroll.DisbursementReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getReport(ctx, s.db, batchID)
}

// ApplyDisbursement applies one ledger callback inside a database transaction.
func (s *Store) ApplyDisbursement(ctx context.Context, update payroll.DisbursementUpdate) (payroll.DisbursementReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payroll.DisbursementReport{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	report, err := getReport(ctx, sqlTx, update.BatchID)
	if err != nil {
		return payroll.DisbursementReport{}, false, err
	}

	next, changed, err := payroll.ApplyDisbursementUpdate(report, update)
	if err != nil || !changed {
		return report, false, err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return report, false, fmt.Errorf("failed to encode report %s: %w", next.BatchID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = sqlTx.ExecContext(ctx,
		"UPDATE disbursement_reports SET status = ?, report_json = ?, updated_at = ? WHERE batch_id = ?",
		string(next.Status), string(data), now, next.BatchID,
	)
	if err != nil {
		return report, false, fmt.Errorf("failed to update report %s: %w", next.BatchID, err)
	}

	_, err = sqlTx.ExecContext(ctx,
		"INSERT INTO disbursement_updates (batch_id, employee_id, status, reference, applied_at) VALUES (?, ?, ?, ?, ?)",
		update.BatchID, update.EmployeeID, string(update.Status), nullString(update.Reference), now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return report, false, &payroll.TransitionError{
				BatchID: update.BatchID, EmployeeID: update.EmployeeID,
				To: string(update.Status), Err: payroll.ErrTerminalStatus,
			}
		}
		return report, false, fmt.Errorf("failed to record update: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return report, false, err
	}
	return next, true, nil
}

// ListUpdates returns the applied ledger callbacks for a batch, oldest first.
func (s *Store) ListUpdates(ctx context.Context, batchID string) ([]payroll.DisbursementUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT batch_id, employee_id, status, reference FROM disbursement_updates WHERE batch_id = ? ORDER BY rowid",
		batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []payroll.DisbursementUpdate
	for rows.Next() {
		var u payroll.DisbursementUpdate
		var status string
		var reference sql.NullString
		if err := rows.Scan(&u.BatchID, &u.EmployeeID, &status, &reference); err != nil {
			return nil, err
		}
		u.Status = payroll.EntryStatus(status)
		u.Reference = reference.String
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRun(ctx context.Context, db querier, batchID string) (payroll.PayrollRun, error) {
	var data string
	err := db.QueryRowContext(ctx, "SELECT run_json FROM payroll_runs WHERE batch_id = ?", batchID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayrollRun{}, fmt.Errorf("%w: %s", payroll.ErrRunNotFound, batchID)
	}
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	var run payroll.PayrollRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to decode run %s: %w", batchID, err)
	}
	return run, nil
}

func getReport(ctx context.Context, db querier, batchID string) (payroll.DisbursementReport, error) {
	var data string
	err := db.QueryRowContext(ctx, "SELECT report_json FROM disbursement_reports WHERE batch_id = ?", batchID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.DisbursementReport{}, fmt.Errorf("%w: %s", payroll.ErrReportNotFound, batchID)
	}
	if err != nil {
		return payroll.DisbursementReport{}, err
	}

	var report payroll.DisbursementReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return payroll.DisbursementReport{}, fmt.Errorf("failed to decode report %s: %w", batchID, err)
	}
	return report, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
