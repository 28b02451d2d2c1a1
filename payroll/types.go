// Package payroll turns compensation structures into payslips, batch payroll
// runs, disbursement reports and annual P9 tax certificates.
// It uses the statutory package for every legally mandated figure.
package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// EMPLOYEE & COMPENSATION
// =============================================================================

type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "Active"
	StatusSuspended  EmploymentStatus = "Suspended"
	StatusTerminated EmploymentStatus = "Terminated"
	StatusOnLeave    EmploymentStatus = "OnLeave"
)

// Valid reports whether s is a known employment status.
func (s EmploymentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusTerminated, StatusOnLeave:
		return true
	}
	return false
}

// Allowances are the monthly cash allowances paid on top of basic salary.
type Allowances struct {
	Housing   decimal.Decimal `json:"housing"`
	Transport decimal.Decimal `json:"transport"`
	Medical   decimal.Decimal `json:"medical"`
	Other     decimal.Decimal `json:"other"`
}

// Total sums every allowance.
func (a Allowances) Total() decimal.Decimal {
	return statutory.Sum(a.Housing, a.Transport, a.Medical, a.Other)
}

// CompensationStructure is an immutable monthly pay snapshot for one employee.
// BasicSalary is nullable so that a missing value can be told apart from zero.
type CompensationStructure struct {
	BasicSalary         decimal.NullDecimal `json:"basicSalary"`
	Allowances          Allowances          `json:"allowances"`
	PensionContribution decimal.Decimal     `json:"pensionContribution"`
	PRMFContribution    decimal.Decimal     `json:"prmfContribution"`
	MortgageInterest    decimal.Decimal     `json:"mortgageInterest"`
	InsurancePremium    decimal.Decimal     `json:"insurancePremium"`
}

// Validate rejects a missing or negative basic salary and negative amounts elsewhere.
func (c CompensationStructure) Validate() error {
	if !c.BasicSalary.Valid {
		return &InvalidCompensationError{Field: "basicSalary", Reason: "missing"}
	}
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"basicSalary", c.BasicSalary.Decimal},
		{"allowances.housing", c.Allowances.Housing},
		{"allowances.transport", c.Allowances.Transport},
		{"allowances.medical", c.Allowances.Medical},
		{"allowances.other", c.Allowances.Other},
		{"pensionContribution", c.PensionContribution},
		{"prmfContribution", c.PRMFContribution},
		{"mortgageInterest", c.MortgageInterest},
		{"insurancePremium", c.InsurancePremium},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &InvalidCompensationError{Field: f.name, Reason: "negative amount " + f.value.String()}
		}
	}
	return nil
}

// Basic returns the basic salary. Callers must Validate first.
func (c CompensationStructure) Basic() decimal.Decimal {
	return c.BasicSalary.Decimal
}

// Employee is supplied by the host's roster. The engine never mutates it.
type Employee struct {
	ID            string                `json:"id"`
	MainName      string                `json:"mainName"`
	OtherNames    string                `json:"otherNames,omitempty"`
	Status        EmploymentStatus      `json:"employmentStatus"`
	Compensation  CompensationStructure `json:"compensation"`
	TaxID         string                `json:"taxId"`
	AccountNumber string                `json:"accountNumber,omitempty"`
}

// Name is the display name, other names first.
func (e Employee) Name() string {
	return strings.TrimSpace(e.OtherNames + " " + e.MainName)
}

// Employer identifies the paying organisation on P9 certificates.
type Employer struct {
	TaxID string `json:"employerTaxId"`
	Name  string `json:"employerName"`
}

// =============================================================================
// PAY PERIOD
// =============================================================================

// PayPeriod is a calendar month. It renders as "YYYY-MM".
type PayPeriod struct {
	Year  int
	Month time.Month
}

// NewPayPeriod validates and returns a period.
func NewPayPeriod(year int, month time.Month) (PayPeriod, error) {
	p := PayPeriod{Year: year, Month: month}
	return p, p.Validate()
}

// ParsePayPeriod parses "YYYY-MM".
func ParsePayPeriod(s string) (PayPeriod, error) {
	yearStr, monthStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(yearStr) != 4 || len(monthStr) != 2 {
		return PayPeriod{}, &InvalidPeriodError{Input: s}
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return PayPeriod{}, &InvalidPeriodError{Input: s}
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return PayPeriod{}, &InvalidPeriodError{Input: s}
	}
	p, err := NewPayPeriod(year, time.Month(month))
	if err != nil {
		return PayPeriod{}, &InvalidPeriodError{Input: s}
	}
	return p, nil
}

// Validate checks the month is 1-12 and the year is four digits.
func (p PayPeriod) Validate() error {
	if p.Year < 1000 || p.Year > 9999 || p.Month < time.January || p.Month > time.December {
		return &InvalidPeriodError{Input: fmt.Sprintf("%d-%d", p.Year, int(p.Month))}
	}
	return nil
}

func (p PayPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Compact renders the period as "YYYYMM" for identifiers.
func (p PayPeriod) Compact() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

func (p PayPeriod) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PayPeriod) UnmarshalText(text []byte) error {
	parsed, err := ParsePayPeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// =============================================================================
// PAYROLL LINE ITEM & RUN
// =============================================================================

type LineStatus string

const LineProcessed LineStatus = "Processed"

// PayrollLineItem is one employee's computed pay for a period.
//
// INVARIANTS:
//   - TotalDeductions == PAYE + NSSF + SHA + HousingLevy
//   - NetSalary == GrossSalary - TotalDeductions
type PayrollLineItem struct {
	EmployeeID      string          `json:"employeeId"`
	EmployeeName    string          `json:"employeeName,omitempty"`
	AccountNumber   string          `json:"accountNumber,omitempty"`
	Period          PayPeriod       `json:"period"`
	GrossSalary     decimal.Decimal `json:"grossSalary"`
	PAYE            decimal.Decimal `json:"paye"`
	NSSF            decimal.Decimal `json:"nssf"`
	SHA             decimal.Decimal `json:"sha"`
	HousingLevy     decimal.Decimal `json:"housingLevy"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	NetSalary       decimal.Decimal `json:"netSalary"`
	Status          LineStatus      `json:"status"`
}

// Totals aggregates every line of a run.
type Totals struct {
	Employees       int             `json:"employees"`
	GrossSalary     decimal.Decimal `json:"grossSalary"`
	PAYE            decimal.Decimal `json:"paye"`
	NSSF            decimal.Decimal `json:"nssf"`
	SHA             decimal.Decimal `json:"sha"`
	HousingLevy     decimal.Decimal `json:"housingLevy"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	NetSalary       decimal.Decimal `json:"netSalary"`
}

func (t Totals) add(l PayrollLineItem) Totals {
	return Totals{
		Employees:       t.Employees + 1,
		GrossSalary:     t.GrossSalary.Add(l.GrossSalary),
		PAYE:            t.PAYE.Add(l.PAYE),
		NSSF:            t.NSSF.Add(l.NSSF),
		SHA:             t.SHA.Add(l.SHA),
		HousingLevy:     t.HousingLevy.Add(l.HousingLevy),
		TotalDeductions: t.TotalDeductions.Add(l.TotalDeductions),
		NetSalary:       t.NetSalary.Add(l.NetSalary),
	}
}

// SumLines recomputes totals from scratch.
func SumLines(lines []PayrollLineItem) Totals {
	var t Totals
	for _, l := range lines {
		t = t.add(l)
	}
	return t
}

type RunStatus string

const (
	RunProcessed RunStatus = "Processed"
	RunApproved  RunStatus = "Approved"
)

// SkippedEmployee records an employee left out of a run and why.
type SkippedEmployee struct {
	EmployeeID string `json:"employeeId"`
	Reason     string `json:"reason"`
}

// PayrollRun is a build-once batch for one period. Functions that change
// a run's state return a new value; the receiver is never modified.
type PayrollRun struct {
	BatchID         string            `json:"batchId"`
	Period          PayPeriod         `json:"period"`
	Status          RunStatus         `json:"status"`
	ScheduleVersion string            `json:"scheduleVersion"`
	Lines           []PayrollLineItem `json:"lines"`
	Skipped         []SkippedEmployee `json:"skipped,omitempty"`
	Totals          Totals            `json:"totals"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// Clone returns a deep copy of the run.
func (r PayrollRun) Clone() PayrollRun {
	out := r
	out.Lines = append([]PayrollLineItem(nil), r.Lines...)
	out.Skipped = append([]SkippedEmployee(nil), r.Skipped...)
	return out
}

// Line returns the line for employeeID.
func (r PayrollRun) Line(employeeID string) (PayrollLineItem, bool) {
	for _, l := range r.Lines {
		if l.EmployeeID == employeeID {
			return l, true
		}
	}
	return PayrollLineItem{}, false
}

// ApproveRun returns an approved copy of run. Approving twice is a no-op.
func ApproveRun(run PayrollRun) PayrollRun {
	out := run.Clone()
	out.Status = RunApproved
	return out
}
