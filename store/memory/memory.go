// Package memory provides an in-memory payroll.Store for tests and the CLI.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	employees map[string]payroll.Employee
	roster    []string // insertion order

	runs     map[string]payroll.PayrollRun
	runOrder []string

	reports map[string]payroll.DisbursementReport
	updates map[string][]payroll.DisbursementUpdate // by batch, oldest first
}

var _ payroll.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		employees: make(map[string]payroll.Employee),
		runs:      make(map[string]payroll.PayrollRun),
		reports:   make(map[string]payroll.DisbursementReport),
		updates:   make(map[string][]payroll.DisbursementUpdate),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee inserts or replaces emp. Replacing keeps its roster position.
func (m *Memory) SaveEmployee(_ context.Context, emp payroll.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[emp.ID]; !ok {
		m.roster = append(m.roster, emp.ID)
	}
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return payroll.Employee{}, fmt.Errorf("%w: %s", payroll.ErrEmployeeNotFound, id)
	}
	return emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payroll.Employee, 0, len(m.roster))
	for _, id := range m.roster {
		result = append(result, m.employees[id])
	}
	return result, nil
}

// =============================================================================
// RUNS AND REPORTS
// =============================================================================

// SaveRun stores run once. Append-only.
func (m *Memory) SaveRun(_ context.Context, run payroll.PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.BatchID]; ok {
		return fmt.Errorf("%w: %s", payroll.ErrDuplicateBatch, run.BatchID)
	}
	m.runs[run.BatchID] = run.Clone()
	m.runOrder = append(m.runOrder, run.BatchID)
	return nil
}

func (m *Memory) GetRun(_ context.Context, batchID string) (payroll.PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[batchID]
	if !ok {
		return payroll.PayrollRun{}, fmt.Errorf("%w: %s", payroll.ErrRunNotFound, batchID)
	}
	return run.Clone(), nil
}

// ListRuns returns runs in the order they were saved.
func (m *Memory) ListRuns(_ context.Context) ([]payroll.PayrollRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payroll.PayrollRun, 0, len(m.runOrder))
	for _, id := range m.runOrder {
		result = append(result, m.runs[id].Clone())
	}
	return result, nil
}

// SaveApproval replaces the stored run with its approved copy and stores
// report. Both writes happen under one lock.
func (m *Memory) SaveApproval(_ context.Context, run payroll.PayrollRun, report payroll.DisbursementReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.runs[run.BatchID]
	if !ok {
		return fmt.Errorf("%w: %s", payroll.ErrRunNotFound, run.BatchID)
	}
	if _, ok := m.reports[run.BatchID]; ok || stored.Status == payroll.RunApproved {
		return fmt.Errorf("%w: %s", payroll.ErrAlreadyApproved, run.BatchID)
	}
	if report.BatchID != run.BatchID {
		return fmt.Errorf("%w: report %s for run %s", payroll.ErrBatchMismatch, report.BatchID, run.BatchID)
	}

	m.runs[run.BatchID] = run.Clone()
	m.reports[run.BatchID] = report.Clone()
	return nil
}

func (m *Memory) GetReport(_ context.Context, batchID string) (payroll.DisbursementReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, ok := m.reports[batchID]
	if !ok {
		return payroll.DisbursementReport{}, fmt.Errorf("%w: %s", payroll.ErrReportNotFound, batchID)
	}
	return report.Clone(), nil
}

// ApplyDisbursement applies update to the stored report. A replayed update
// returns the current report with changed == false.
func (m *Memory) ApplyDisbursement(_ context.Context, update payroll.DisbursementUpdate) (payroll.DisbursementReport, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, ok := m.reports[update.BatchID]
	if !ok {
		return payroll.DisbursementReport{}, false, fmt.Errorf("%w: %s", payroll.ErrReportNotFound, update.BatchID)
	}

	next, changed, err := payroll.ApplyDisbursementUpdate(report, update)
	if err != nil {
		return report.Clone(), false, err
	}
	if changed {
		m.reports[update.BatchID] = next
		m.updates[update.BatchID] = append(m.updates[update.BatchID], update)
	}
	return next.Clone(), changed, nil
}

// ListUpdates returns the applied updates for batchID, oldest first.
func (m *Memory) ListUpdates(_ context.Context, batchID string) ([]payroll.DisbursementUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]payroll.DisbursementUpdate(nil), m.updates[batchID]...), nil
}
