/*
certificate.go - Annual P9 tax deduction certificate

PURPOSE:
  Expands the monthly calculation across the twelve months of a tax year
  and produces the P9Record handed to the document renderer.

ASSUMPTION:
  Compensation is constant across the year. There is no month-to-month
  history model; every row is computed from the same structure.

ROW FORMULAS (monthly, caps from the schedule in force for the year):
  nonCashBenefits     = sum(allowances)
  valueOfQuarters     = min(housing, basic * 30%)
  totalGrossPay       = round(basic + allowances), as on the payslip
  AHL / SHIF          = totalGrossPay * 1.5% / 2.75%
  PRMF                = min(prmf, 15,000)
  pension             = min(pension, 30,000)
  mortgage interest   = min(mortgage, 30,000)
  chargeablePay       = totalGrossPay - (AHL + SHIF + PRMF + pension + mortgage)
  payeTax             = max(bands(chargeablePay) - personal - insurance, 0)

  Unlike the monthly payslip, NSSF is not part of the P9 deductions.

PURITY:
  The record holds no timestamps or random ids. The same employee and year
  always produce the same bytes.
*/
package payroll

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/statutory"
)

// MonthlyTaxRow is one month on the P9 certificate. Every value is rounded.
//
// INVARIANT: PAYETax == max(TaxCharged - PersonalRelief - InsuranceRelief, 0)
type MonthlyTaxRow struct {
	Month                               string          `json:"month"`
	BasicSalary                         decimal.Decimal `json:"basicSalary"`
	NonCashBenefits                     decimal.Decimal `json:"nonCashBenefits"`
	ValueOfQuarters                     decimal.Decimal `json:"valueOfQuarters"`
	TotalGrossPay                       decimal.Decimal `json:"totalGrossPay"`
	AffordableHousingLevy               decimal.Decimal `json:"affordableHousingLevy"`
	SocialHealthInsuranceFund           decimal.Decimal `json:"socialHealthInsuranceFund"`
	PostRetirementMedicalFund           decimal.Decimal `json:"postRetirementMedicalFund"`
	DefinedContributionRetirementScheme decimal.Decimal `json:"definedContributionRetirementScheme"`
	OwnerOccupiedInterest               decimal.Decimal `json:"ownerOccupiedInterest"`
	TotalDeductions                     decimal.Decimal `json:"totalDeductions"`
	ChargeablePay                       decimal.Decimal `json:"chargeablePay"`
	TaxCharged                          decimal.Decimal `json:"taxCharged"`
	PersonalRelief                      decimal.Decimal `json:"personalRelief"`
	InsuranceRelief                     decimal.Decimal `json:"insuranceRelief"`
	PAYETax                             decimal.Decimal `json:"payeTax"`
}

// P9Record is the annual certificate for one employee.
type P9Record struct {
	Year               int             `json:"year"`
	EmployerTaxID      string          `json:"employerTaxId"`
	EmployerName       string          `json:"employerName"`
	EmployeeTaxID      string          `json:"employeeTaxId"`
	EmployeeMainName   string          `json:"employeeMainName"`
	EmployeeOtherNames string          `json:"employeeOtherNames"`
	ScheduleVersion    string          `json:"scheduleVersion"`
	MonthlyData        []MonthlyTaxRow `json:"monthlyData"`
	TotalGrossPay      decimal.Decimal `json:"totalGrossPay"`
	TotalChargeablePay decimal.Decimal `json:"totalChargeablePay"`
	TotalTax           decimal.Decimal `json:"totalTax"`
}

// CertificateComputer builds P9 records. It holds no mutable state.
type CertificateComputer struct {
	Registry *statutory.Registry
	Employer Employer
}

// NewCertificateComputer returns a computer for employer.
func NewCertificateComputer(registry *statutory.Registry, employer Employer) *CertificateComputer {
	return &CertificateComputer{Registry: registry, Employer: employer}
}

// Compute builds the P9 record for emp in tax year.
func (c *CertificateComputer) Compute(emp Employee, year int) (P9Record, error) {
	if _, err := NewPayPeriod(year, time.January); err != nil {
		return P9Record{}, &InvalidPeriodError{Input: strconv.Itoa(year)}
	}
	comp := emp.Compensation
	if err := comp.Validate(); err != nil {
		if ic, ok := err.(*InvalidCompensationError); ok {
			ic.EmployeeID = emp.ID
		}
		return P9Record{}, err
	}
	schedule, err := c.Registry.ForYear(year)
	if err != nil {
		return P9Record{}, err
	}

	rec := P9Record{
		Year:               year,
		EmployerTaxID:      c.Employer.TaxID,
		EmployerName:       c.Employer.Name,
		EmployeeTaxID:      emp.TaxID,
		EmployeeMainName:   emp.MainName,
		EmployeeOtherNames: emp.OtherNames,
		ScheduleVersion:    schedule.Version,
		MonthlyData:        make([]MonthlyTaxRow, 0, 12),
	}
	for m := time.January; m <= time.December; m++ {
		row := MonthlyRow(schedule, comp, m)
		rec.MonthlyData = append(rec.MonthlyData, row)
		rec.TotalGrossPay = rec.TotalGrossPay.Add(row.TotalGrossPay)
		rec.TotalChargeablePay = rec.TotalChargeablePay.Add(row.ChargeablePay)
		rec.TotalTax = rec.TotalTax.Add(row.PAYETax)
	}
	return rec, nil
}

// MonthlyRow computes one P9 row. comp must already be valid.
func MonthlyRow(schedule statutory.Schedule, comp CompensationStructure, month time.Month) MonthlyTaxRow {
	basic := statutory.Round(comp.Basic())
	benefits := statutory.Round(comp.Allowances.Total())
	// Rounded once from the exact sum, as on the payslip.
	gross := statutory.Round(comp.Basic().Add(comp.Allowances.Total()))

	quarters := statutory.Round(decimal.Min(comp.Allowances.Housing, comp.Basic().Mul(schedule.QuartersRate)))
	ahl := statutory.Percent(gross, schedule.HousingLevyRate)
	shif := statutory.Percent(gross, schedule.SHIFRate)
	prmf := statutory.Round(statutory.Clamp(comp.PRMFContribution, schedule.PRMFCap))
	pension := statutory.Round(statutory.Clamp(comp.PensionContribution, schedule.PensionCap))
	mortgage := statutory.Round(statutory.Clamp(comp.MortgageInterest, schedule.MortgageInterestCap))

	deductions := statutory.Sum(ahl, shif, prmf, pension, mortgage)
	chargeable := statutory.FloorZero(gross.Sub(deductions))
	taxCharged := schedule.TaxBands().Tax(chargeable)
	reliefs := schedule.Reliefs().Compute(comp.InsurancePremium)

	return MonthlyTaxRow{
		Month:                               month.String(),
		BasicSalary:                         basic,
		NonCashBenefits:                     benefits,
		ValueOfQuarters:                     quarters,
		TotalGrossPay:                       gross,
		AffordableHousingLevy:               ahl,
		SocialHealthInsuranceFund:           shif,
		PostRetirementMedicalFund:           prmf,
		DefinedContributionRetirementScheme: pension,
		OwnerOccupiedInterest:               mortgage,
		TotalDeductions:                     deductions,
		ChargeablePay:                       chargeable,
		TaxCharged:                          taxCharged,
		PersonalRelief:                      reliefs.Personal,
		InsuranceRelief:                     reliefs.Insurance,
		PAYETax:                             reliefs.Apply(taxCharged),
	}
}
