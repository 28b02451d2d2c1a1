/*
run.go - Batch payroll run for one pay period

PURPOSE:
  Iterates the roster in the order it was supplied, computes a line item
  for every Active employee and aggregates the totals into a PayrollRun.

FAILURE HANDLING:
  - One employee with invalid compensation is skipped, recorded in
    PayrollRun.Skipped and logged for operator review. The run continues.
  - An invalid period, a missing schedule or a roster with no Active
    employee rejects the whole invocation. No run value is returned.

IMMUTABILITY:
  Every call builds a fresh run with a fresh BatchID. Re-running a period
  recomputes from scratch; it never merges into a previous run. The host
  is responsible for serializing run creation per period.

EXAMPLE:
  proc := payroll.NewRunProcessor(statutory.DefaultRegistry(), logger)
  run, err := proc.Process(roster, payroll.PayPeriod{Year: 2025, Month: time.March})
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/statutory"
)

// RunProcessor builds PayrollRuns. Its fields are read-only after construction.
type RunProcessor struct {
	Registry *statutory.Registry
	Logger   *zap.Logger

	// NewBatchID and Now are replaceable for deterministic tests.
	NewBatchID func(PayPeriod) string
	Now        func() time.Time
}

// NewRunProcessor returns a processor. A nil logger discards output.
func NewRunProcessor(registry *statutory.Registry, logger *zap.Logger) *RunProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunProcessor{
		Registry:   registry,
		Logger:     logger.Named("payroll.run"),
		NewBatchID: DefaultBatchID,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// DefaultBatchID renders "PR-YYYYMM-<8 hex>".
func DefaultBatchID(p PayPeriod) string {
	return fmt.Sprintf("PR-%s-%s", p.Compact(), uuid.NewString()[:8])
}

// Process computes a run for period from roster.
func (p *RunProcessor) Process(roster []Employee, period PayPeriod) (PayrollRun, error) {
	if err := period.Validate(); err != nil {
		return PayrollRun{}, err
	}
	schedule, err := p.Registry.ForYear(period.Year)
	if err != nil {
		return PayrollRun{}, err
	}

	eligible := ActiveOnly(roster)
	if len(eligible) == 0 {
		p.Logger.Warn("payroll run rejected: empty roster",
			zap.Stringer("period", period),
			zap.Int("roster_size", len(roster)))
		return PayrollRun{}, ErrEmptyRoster
	}

	computer := NewPayslipComputer(schedule)
	run := PayrollRun{
		BatchID:         p.NewBatchID(period),
		Period:          period,
		Status:          RunProcessed,
		ScheduleVersion: schedule.Version,
		Lines:           make([]PayrollLineItem, 0, len(eligible)),
		CreatedAt:       p.Now(),
	}

	for _, emp := range eligible {
		line, err := computer.Compute(emp.ID, emp.Compensation, period)
		if err != nil {
			p.Logger.Warn("employee excluded from payroll run",
				zap.String("batch_id", run.BatchID),
				zap.String("employee_id", emp.ID),
				zap.Error(err))
			run.Skipped = append(run.Skipped, SkippedEmployee{EmployeeID: emp.ID, Reason: err.Error()})
			continue
		}
		line.EmployeeName = emp.Name()
		line.AccountNumber = emp.AccountNumber
		run.Lines = append(run.Lines, line)
		run.Totals = run.Totals.add(line)
	}

	if len(run.Lines) == 0 {
		skipped := make([]string, len(run.Skipped))
		for i, sk := range run.Skipped {
			skipped[i] = sk.EmployeeID
		}
		p.Logger.Warn("payroll run rejected: no payable employee",
			zap.String("batch_id", run.BatchID),
			zap.Stringer("period", period),
			zap.Strings("skipped", skipped))
		return PayrollRun{}, fmt.Errorf("%w: all %d active employees skipped", ErrEmptyRoster, len(run.Skipped))
	}

	p.Logger.Info("payroll run built",
		zap.String("batch_id", run.BatchID),
		zap.Stringer("period", period),
		zap.String("schedule", schedule.Version),
		zap.Int("processed", len(run.Lines)),
		zap.Int("skipped", len(run.Skipped)),
		zap.String("total_net", run.Totals.NetSalary.String()))
	return run, nil
}

// ActiveOnly filters roster to Active employees, preserving order.
func ActiveOnly(roster []Employee) []Employee {
	out := make([]Employee, 0, len(roster))
	for _, e := range roster {
		if e.Status == StatusActive {
			out = append(out, e)
		}
	}
	return out
}
