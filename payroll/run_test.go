package payroll_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/statutory"
)

var fixedNow = time.Date(2025, time.March, 28, 9, 0, 0, 0, time.UTC)

// newProcessor returns a processor with sequential batch ids and a fixed clock.
func newProcessor(t *testing.T, logger *zap.Logger) *payroll.RunProcessor {
	t.Helper()
	p := payroll.NewRunProcessor(statutory.DefaultRegistry(), logger)
	seq := 0
	p.NewBatchID = func(period payroll.PayPeriod) string {
		seq++
		return fmt.Sprintf("PR-%s-%08d", period.Compact(), seq)
	}
	p.Now = func() time.Time { return fixedNow }
	return p
}

func mixedRoster() []payroll.Employee {
	return []payroll.Employee{
		employee("e1", payroll.StatusActive, scenarioA()),
		employee("e2", payroll.StatusSuspended, basicOnly(50000)),
		employee("e3", payroll.StatusActive, basicOnly(20000)),
		employee("e4", payroll.StatusTerminated, basicOnly(90000)),
		employee("e5", payroll.StatusOnLeave, basicOnly(30000)),
	}
}

func TestRun_OnlyActiveEmployeesInRosterOrder(t *testing.T) {
	// GIVEN: Five employees, two Active
	p := newProcessor(t, nil)

	// WHEN: A run is processed
	run, err := p.Process(mixedRoster(), march2025())
	require.NoError(t, err)

	// THEN: Exactly the Active employees appear, in roster order
	require.Len(t, run.Lines, 2)
	assert.Equal(t, "e1", run.Lines[0].EmployeeID)
	assert.Equal(t, "e3", run.Lines[1].EmployeeID)
	assert.Equal(t, "Jane e1 Otieno", run.Lines[0].EmployeeName)
	assert.Equal(t, "ACC-e3", run.Lines[1].AccountNumber)
	assert.Empty(t, run.Skipped)

	assert.Equal(t, "PR-202503-00000001", run.BatchID)
	assert.Equal(t, payroll.RunProcessed, run.Status)
	assert.Equal(t, "KE-2023.07", run.ScheduleVersion)
	assert.Equal(t, fixedNow, run.CreatedAt)
}

func TestRun_TotalsEqualSumOfLines(t *testing.T) {
	run, err := newProcessor(t, nil).Process(mixedRoster(), march2025())
	require.NoError(t, err)

	assert.Equal(t, 2, run.Totals.Employees)
	assertAmount(t, 140000, run.Totals.GrossSalary)
	assertAmount(t, 28383, run.Totals.PAYE)
	assertAmount(t, 3360, run.Totals.NSSF)
	assertAmount(t, 3850, run.Totals.SHA)
	assertAmount(t, 2100, run.Totals.HousingLevy)
	assertAmount(t, 37693, run.Totals.TotalDeductions)
	assertAmount(t, 102307, run.Totals.NetSalary)

	assert.Equal(t, payroll.SumLines(run.Lines), run.Totals)
}

func TestRun_InvalidEmployeeSkippedAndLogged(t *testing.T) {
	// GIVEN: One Active employee without a basic salary
	core, logs := observer.New(zapcore.WarnLevel)
	p := newProcessor(t, zap.New(core))

	roster := append(mixedRoster(), employee("e6", payroll.StatusActive, payroll.CompensationStructure{}))

	// WHEN: The run is processed
	run, err := p.Process(roster, march2025())

	// THEN: The run succeeds without that employee, and the skip is logged
	require.NoError(t, err)
	require.Len(t, run.Lines, 2)
	require.Len(t, run.Skipped, 1)
	assert.Equal(t, "e6", run.Skipped[0].EmployeeID)
	assert.Contains(t, run.Skipped[0].Reason, "basicSalary")
	assert.Equal(t, 2, run.Totals.Employees)

	entries := logs.FilterMessage("employee excluded from payroll run").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "e6", entries[0].ContextMap()["employee_id"])
}

func TestRun_EmptyRosterRejected(t *testing.T) {
	// GIVEN: Nobody Active
	roster := []payroll.Employee{
		employee("e1", payroll.StatusSuspended, basicOnly(50000)),
		employee("e2", payroll.StatusTerminated, basicOnly(50000)),
	}

	// WHEN/THEN: EmptyRoster, and no run value
	run, err := newProcessor(t, nil).Process(roster, march2025())
	require.ErrorIs(t, err, payroll.ErrEmptyRoster)
	assert.Equal(t, payroll.PayrollRun{}, run)

	_, err = newProcessor(t, nil).Process(nil, march2025())
	require.ErrorIs(t, err, payroll.ErrEmptyRoster)
}

func TestRun_AllActiveEmployeesSkippedRejected(t *testing.T) {
	// GIVEN: The only Active employee has no basic salary
	core, logs := observer.New(zapcore.WarnLevel)
	p := newProcessor(t, zap.New(core))
	roster := []payroll.Employee{
		employee("x", payroll.StatusActive, payroll.CompensationStructure{}),
		employee("e2", payroll.StatusSuspended, basicOnly(50000)),
	}

	// WHEN: The run is processed
	run, err := p.Process(roster, march2025())

	// THEN: EmptyRoster, no run value, and the skipped ids are logged
	require.ErrorIs(t, err, payroll.ErrEmptyRoster)
	assert.Equal(t, payroll.PayrollRun{}, run)

	entries := logs.FilterMessage("payroll run rejected: no payable employee").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"x"}, entries[0].ContextMap()["skipped"])
}

func TestRun_InvalidPeriodRejected(t *testing.T) {
	_, err := newProcessor(t, nil).Process(mixedRoster(), payroll.PayPeriod{Year: 2025, Month: 13})
	require.ErrorIs(t, err, payroll.ErrInvalidPeriod)
}

func TestRun_YearWithoutScheduleRejected(t *testing.T) {
	_, err := newProcessor(t, nil).Process(mixedRoster(), payroll.PayPeriod{Year: 2019, Month: time.June})
	require.ErrorIs(t, err, statutory.ErrNoSchedule)
	assert.True(t, payroll.IsClientError(err))
}

func TestRun_RerunBuildsFreshBatch(t *testing.T) {
	// GIVEN: The same roster and period processed twice
	p := newProcessor(t, nil)
	first, err := p.Process(mixedRoster(), march2025())
	require.NoError(t, err)
	second, err := p.Process(mixedRoster(), march2025())
	require.NoError(t, err)

	// THEN: Distinct batches with identical figures
	assert.NotEqual(t, first.BatchID, second.BatchID)
	assert.Equal(t, first.Totals, second.Totals)
}

func TestDefaultBatchID(t *testing.T) {
	a := payroll.DefaultBatchID(march2025())
	b := payroll.DefaultBatchID(march2025())

	assert.Regexp(t, `^PR-202503-[0-9a-f]{8}$`, a)
	assert.NotEqual(t, a, b)
}

func TestApproveRun_ReturnsCopy(t *testing.T) {
	run, err := newProcessor(t, nil).Process(mixedRoster(), march2025())
	require.NoError(t, err)

	approved := payroll.ApproveRun(run)
	assert.Equal(t, payroll.RunApproved, approved.Status)
	assert.Equal(t, payroll.RunProcessed, run.Status)

	approved.Lines[0].EmployeeName = "changed"
	assert.Equal(t, "Jane e1 Otieno", run.Lines[0].EmployeeName)
}
