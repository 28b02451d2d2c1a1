package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/statutory"
	"github.com/warp/payroll-engine/store/memory"
)

func staff(id string, basic int64) payroll.Employee {
	return payroll.Employee{
		ID:       id,
		MainName: "Kamau",
		Status:   payroll.StatusActive,
		Compensation: payroll.CompensationStructure{
			BasicSalary: decimal.NewNullDecimal(decimal.NewFromInt(basic)),
		},
	}
}

func builtRun(t *testing.T, roster []payroll.Employee) payroll.PayrollRun {
	t.Helper()
	p := payroll.NewRunProcessor(statutory.DefaultRegistry(), nil)
	run, err := p.Process(roster, payroll.PayPeriod{Year: 2025, Month: time.May})
	require.NoError(t, err)
	return run
}

func approve(t *testing.T, run payroll.PayrollRun) (payroll.PayrollRun, payroll.DisbursementReport) {
	t.Helper()
	approved := payroll.ApproveRun(run)
	report, err := payroll.BuildDisbursementReport(approved, payroll.Approval{
		ApprovedBy: "cfo",
		ApprovedAt: time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC),
		Method:     payroll.MethodMobileMoney,
	})
	require.NoError(t, err)
	return approved, report
}

func TestMemory_EmployeesKeepRosterOrder(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	require.NoError(t, m.SaveEmployee(ctx, staff("b", 1000)))
	require.NoError(t, m.SaveEmployee(ctx, staff("a", 2000)))
	require.NoError(t, m.SaveEmployee(ctx, staff("b", 3000)))

	list, err := m.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "3000", list[0].Compensation.BasicSalary.Decimal.String())

	_, err = m.GetEmployee(ctx, "zzz")
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
}

func TestMemory_RunsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	run := builtRun(t, []payroll.Employee{staff("e1", 50000)})

	require.NoError(t, m.SaveRun(ctx, run))
	err := m.SaveRun(ctx, run)
	assert.ErrorIs(t, err, payroll.ErrDuplicateBatch)

	got, err := m.GetRun(ctx, run.BatchID)
	require.NoError(t, err)
	assert.Equal(t, run.BatchID, got.BatchID)

	_, err = m.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestMemory_ApprovalOnce(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	run := builtRun(t, []payroll.Employee{staff("e1", 50000)})
	require.NoError(t, m.SaveRun(ctx, run))

	approved, report := approve(t, run)
	require.NoError(t, m.SaveApproval(ctx, approved, report))

	stored, err := m.GetRun(ctx, run.BatchID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunApproved, stored.Status)

	err = m.SaveApproval(ctx, approved, report)
	assert.ErrorIs(t, err, payroll.ErrAlreadyApproved)
}

func TestMemory_ApplyDisbursementIdempotent(t *testing.T) {
	// GIVEN: An approved run with two employees
	ctx := context.Background()
	m := memory.New()
	run := builtRun(t, []payroll.Employee{staff("e1", 50000), staff("e2", 20000)})
	require.NoError(t, m.SaveRun(ctx, run))
	approved, report := approve(t, run)
	require.NoError(t, m.SaveApproval(ctx, approved, report))

	u := payroll.DisbursementUpdate{BatchID: run.BatchID, EmployeeID: "e1", Status: payroll.EntrySuccess, Reference: "MP123"}

	// WHEN: The same update arrives twice
	first, changed, err := m.ApplyDisbursement(ctx, u)
	require.NoError(t, err)
	assert.True(t, changed)
	second, changed, err := m.ApplyDisbursement(ctx, u)
	require.NoError(t, err)

	// THEN: The second is a no-op
	assert.False(t, changed)
	assert.True(t, first.DisbursedAmount.Equal(second.DisbursedAmount))

	recorded, err := m.ListUpdates(ctx, run.BatchID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "MP123", recorded[0].Reference)

	// AND: A conflicting terminal update is rejected
	_, _, err = m.ApplyDisbursement(ctx, payroll.DisbursementUpdate{BatchID: run.BatchID, EmployeeID: "e1", Status: payroll.EntryFailed})
	assert.ErrorIs(t, err, payroll.ErrTerminalStatus)

	stored, err := m.GetReport(ctx, run.BatchID)
	require.NoError(t, err)
	assert.Equal(t, payroll.EntrySuccess, stored.Employees[0].DisbursementStatus)
}

func TestMemory_ApplyDisbursementUnknownBatch(t *testing.T) {
	_, _, err := memory.New().ApplyDisbursement(context.Background(), payroll.DisbursementUpdate{BatchID: "nope", EmployeeID: "e1", Status: payroll.EntrySuccess})
	assert.ErrorIs(t, err, payroll.ErrReportNotFound)
}

func TestMemory_ListUpdatesInApplyOrder(t *testing.T) {
	// GIVEN: An approved run with two employees
	ctx := context.Background()
	m := memory.New()
	run := builtRun(t, []payroll.Employee{staff("e1", 50000), staff("e2", 20000)})
	require.NoError(t, m.SaveRun(ctx, run))
	approved, report := approve(t, run)
	require.NoError(t, m.SaveApproval(ctx, approved, report))

	// WHEN: e2 fails before e1 succeeds, and a rejected update follows
	for _, u := range []payroll.DisbursementUpdate{
		{BatchID: run.BatchID, EmployeeID: "e2", Status: payroll.EntryFailed, Reference: "R-2"},
		{BatchID: run.BatchID, EmployeeID: "e1", Status: payroll.EntrySuccess, Reference: "R-1"},
	} {
		_, _, err := m.ApplyDisbursement(ctx, u)
		require.NoError(t, err)
	}
	_, _, err := m.ApplyDisbursement(ctx, payroll.DisbursementUpdate{BatchID: run.BatchID, EmployeeID: "e9", Status: payroll.EntrySuccess})
	require.Error(t, err)

	// THEN: Only the applied updates are listed, oldest first
	updates, err := m.ListUpdates(ctx, run.BatchID)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "e2", updates[0].EmployeeID)
	assert.Equal(t, "e1", updates[1].EmployeeID)

	// AND: Callers get a copy
	updates[0].Reference = "changed"
	again, err := m.ListUpdates(ctx, run.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "R-2", again[0].Reference)

	none, err := m.ListUpdates(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
