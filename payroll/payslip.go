package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// PAYSLIP COMPUTER
// =============================================================================

// PayslipComputer turns one compensation structure into a line item.
//
// In the monthly path chargeable pay equals gross salary: no pre-tax
// deduction is subtracted before the bands are applied.
type PayslipComputer struct {
	Schedule statutory.Schedule
}

// NewPayslipComputer returns a computer bound to schedule.
func NewPayslipComputer(schedule statutory.Schedule) *PayslipComputer {
	return &PayslipComputer{Schedule: schedule}
}

// Compute returns the line item for employeeID in period.
// Invalid compensation returns *InvalidCompensationError.
func (c *PayslipComputer) Compute(employeeID string, comp CompensationStructure, period PayPeriod) (PayrollLineItem, error) {
	if err := period.Validate(); err != nil {
		return PayrollLineItem{}, err
	}
	if err := comp.Validate(); err != nil {
		if ic, ok := err.(*InvalidCompensationError); ok {
			ic.EmployeeID = employeeID
		}
		return PayrollLineItem{}, err
	}

	gross := statutory.Round(comp.Basic().Add(comp.Allowances.Total()))
	deductions := c.Schedule.Deductions().Compute(gross)
	rawTax := c.Schedule.TaxBands().Tax(gross)
	paye := c.Schedule.Reliefs().Compute(comp.InsurancePremium).Apply(rawTax)

	total := statutory.Sum(paye, deductions.NSSF, deductions.SHIF, deductions.HousingLevy)
	return PayrollLineItem{
		EmployeeID:      employeeID,
		Period:          period,
		GrossSalary:     gross,
		PAYE:            paye,
		NSSF:            deductions.NSSF,
		SHA:             deductions.SHIF,
		HousingLevy:     deductions.HousingLevy,
		TotalDeductions: total,
		NetSalary:       gross.Sub(total),
		Status:          LineProcessed,
	}, nil
}

// Balanced reports whether the line satisfies both line-item invariants.
func (l PayrollLineItem) Balanced() bool {
	sum := statutory.Sum(l.PAYE, l.NSSF, l.SHA, l.HousingLevy)
	return sum.Equal(l.TotalDeductions) && l.NetSalary.Add(l.TotalDeductions).Equal(l.GrossSalary)
}

// IsWhole reports whether every currency field is a whole, non-negative amount.
func (l PayrollLineItem) IsWhole() bool {
	for _, v := range []decimal.Decimal{l.GrossSalary, l.PAYE, l.NSSF, l.SHA, l.HousingLevy, l.TotalDeductions} {
		if v.IsNegative() || !v.Equal(v.Truncate(0)) {
			return false
		}
	}
	return l.NetSalary.Equal(l.NetSalary.Truncate(0))
}
