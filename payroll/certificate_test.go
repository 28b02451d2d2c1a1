package payroll_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/statutory"
)

func testEmployer() payroll.Employer {
	return payroll.Employer{TaxID: "P051234567X", Name: "Warp Logistics Ltd"}
}

// p9Employee has every cap binding: pension 50k, PRMF 20k, mortgage 40k.
func p9Employee() payroll.Employee {
	comp := scenarioA()
	comp.PensionContribution = kes(50000)
	comp.PRMFContribution = kes(20000)
	comp.MortgageInterest = kes(40000)
	comp.InsurancePremium = kes(10000)
	return employee("p9", payroll.StatusActive, comp)
}

func TestMonthlyRow_CapsAndFormulas(t *testing.T) {
	row := payroll.MonthlyRow(statutory.Default(), p9Employee().Compensation, time.April)

	assert.Equal(t, "April", row.Month)
	assertAmount(t, 80000, row.BasicSalary)
	assertAmount(t, 40000, row.NonCashBenefits)
	assertAmount(t, 20000, row.ValueOfQuarters)
	assertAmount(t, 120000, row.TotalGrossPay)
	assertAmount(t, 1800, row.AffordableHousingLevy)
	assertAmount(t, 3300, row.SocialHealthInsuranceFund)
	assertAmount(t, 15000, row.PostRetirementMedicalFund)
	assertAmount(t, 30000, row.DefinedContributionRetirementScheme)
	assertAmount(t, 30000, row.OwnerOccupiedInterest)
	assertAmount(t, 80100, row.TotalDeductions)
	assertAmount(t, 39900, row.ChargeablePay)
	assertAmount(t, 6753, row.TaxCharged)
	assertAmount(t, 2400, row.PersonalRelief)
	assertAmount(t, 1500, row.InsuranceRelief)
	assertAmount(t, 2853, row.PAYETax)
}

func TestMonthlyRow_GrossMatchesPayslipGross(t *testing.T) {
	// GIVEN: Basic and allowances that each round up but sum to a whole amount
	comp := payroll.CompensationStructure{
		BasicSalary: decimal.NewNullDecimal(statutory.MustParse("80000.50")),
		Allowances:  payroll.Allowances{Other: statutory.MustParse("0.50")},
	}

	// WHEN: The P9 row and the payslip are computed for the same month
	row := payroll.MonthlyRow(statutory.Default(), comp, time.March)
	line, err := payroll.NewPayslipComputer(statutory.Default()).Compute("emp-f", comp, march2025())
	require.NoError(t, err)

	// THEN: Both carry the same gross, rounded once from the exact sum
	assertAmount(t, 80001, row.TotalGrossPay)
	assert.True(t, line.GrossSalary.Equal(row.TotalGrossPay), "payslip %s, p9 %s", line.GrossSalary, row.TotalGrossPay)
}

func TestMonthlyRow_PensionClampedNeverRaw(t *testing.T) {
	// GIVEN: Pension contribution of 50,000
	comp := basicOnly(200000)
	comp.PensionContribution = kes(50000)

	// THEN: The row carries the 30,000 cap
	row := payroll.MonthlyRow(statutory.Default(), comp, time.January)
	assertAmount(t, 30000, row.DefinedContributionRetirementScheme)
}

func TestMonthlyRow_QuartersUsesBasicShare(t *testing.T) {
	// Housing above 30% of basic is capped at 30% of basic.
	comp := basicOnly(50000)
	comp.Allowances.Housing = kes(25000)

	row := payroll.MonthlyRow(statutory.Default(), comp, time.January)
	assertAmount(t, 15000, row.ValueOfQuarters)
}

func TestMonthlyRow_DeductionsAboveGrossFloorAtZero(t *testing.T) {
	comp := basicOnly(30000)
	comp.PensionContribution = kes(30000)

	row := payroll.MonthlyRow(statutory.Default(), comp, time.January)
	assert.True(t, row.ChargeablePay.IsZero())
	assert.True(t, row.TaxCharged.IsZero())
	assert.True(t, row.PAYETax.IsZero())
}

func TestMonthlyRow_PAYEInvariant(t *testing.T) {
	s := statutory.Default()
	for basic := int64(0); basic <= 900_000; basic += 13577 {
		comp := basicOnly(basic)
		comp.Allowances.Housing = kes(basic / 4)
		comp.PensionContribution = kes(basic / 10)
		comp.InsurancePremium = kes(basic / 20)

		row := payroll.MonthlyRow(s, comp, time.June)
		want := statutory.FloorZero(row.TaxCharged.Sub(row.PersonalRelief).Sub(row.InsuranceRelief))
		require.True(t, row.PAYETax.Equal(want), "basic %d: paye %s want %s", basic, row.PAYETax, want)
		require.True(t, row.DefinedContributionRetirementScheme.LessThanOrEqual(s.PensionCap))
		require.True(t, row.PostRetirementMedicalFund.LessThanOrEqual(s.PRMFCap))
		require.True(t, row.OwnerOccupiedInterest.LessThanOrEqual(s.MortgageInterestCap))
	}
}

func TestCertificate_TwelveMonthsAndTotals(t *testing.T) {
	// GIVEN: An employee with constant compensation
	c := payroll.NewCertificateComputer(statutory.DefaultRegistry(), testEmployer())

	// WHEN: The 2025 certificate is computed
	rec, err := c.Compute(p9Employee(), 2025)
	require.NoError(t, err)

	// THEN: Twelve rows January..December and annual totals
	require.Len(t, rec.MonthlyData, 12)
	assert.Equal(t, "January", rec.MonthlyData[0].Month)
	assert.Equal(t, "December", rec.MonthlyData[11].Month)

	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, "P051234567X", rec.EmployerTaxID)
	assert.Equal(t, "Warp Logistics Ltd", rec.EmployerName)
	assert.Equal(t, "A00p9", rec.EmployeeTaxID)
	assert.Equal(t, "Otieno", rec.EmployeeMainName)
	assert.Equal(t, "Jane p9", rec.EmployeeOtherNames)
	assert.Equal(t, "KE-2023.07", rec.ScheduleVersion)

	assertAmount(t, 1440000, rec.TotalGrossPay)
	assertAmount(t, 478800, rec.TotalChargeablePay)
	assertAmount(t, 34236, rec.TotalTax)
}

func TestCertificate_SameInputSameBytes(t *testing.T) {
	c := payroll.NewCertificateComputer(statutory.DefaultRegistry(), testEmployer())

	first, err := c.Compute(p9Employee(), 2024)
	require.NoError(t, err)
	second, err := c.Compute(p9Employee(), 2024)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"definedContributionRetirementScheme":"30000"`)
}

func TestCertificate_Rejections(t *testing.T) {
	c := payroll.NewCertificateComputer(statutory.DefaultRegistry(), testEmployer())

	_, err := c.Compute(p9Employee(), 99)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)

	_, err = c.Compute(p9Employee(), 2020)
	assert.ErrorIs(t, err, statutory.ErrNoSchedule)

	bad := employee("bad", payroll.StatusActive, payroll.CompensationStructure{})
	_, err = c.Compute(bad, 2025)
	assert.ErrorIs(t, err, payroll.ErrInvalidCompensation)
	var icErr *payroll.InvalidCompensationError
	require.ErrorAs(t, err, &icErr)
	assert.Equal(t, "bad", icErr.EmployeeID)
}
