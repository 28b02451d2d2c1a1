/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's decimal model from the external contract:
  - Currency leaves the API as whole shillings (int64)
  - Requests carry validator tags checked before any engine call
  - Field names stay stable when engine types evolve

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employees:     payroll.Employee is returned as is; CreateEmployeeRequest
  Runs:          RunDTO, LineItemDTO, TotalsDTO, CreateRunRequest
  Disbursement:  ReportDTO, LedgerEntryDTO, ApproveRunRequest,
                 DisbursementUpdateRequest, DisbursementUpdateResponse
  Certificates:  P9DTO, MonthlyTaxRowDTO
  Preview:       PayslipPreviewRequest
  Scenarios:     ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - cmd/payroll: Prints the same DTOs from the CLI
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateEmployeeRequest is the request to create or replace an employee.
type CreateEmployeeRequest struct {
	ID            string              `json:"id" validate:"required,max=64"`
	MainName      string              `json:"mainName" validate:"required,max=128"`
	OtherNames    string              `json:"otherNames" validate:"max=128"`
	Status        string              `json:"employmentStatus" validate:"required,oneof=Active Suspended Terminated OnLeave"`
	TaxID         string              `json:"taxId" validate:"max=32"`
	AccountNumber string              `json:"accountNumber" validate:"max=64"`
	Compensation  CompensationRequest `json:"compensation"`
}

// CompensationRequest accepts amounts as JSON numbers or decimal strings.
type CompensationRequest struct {
	BasicSalary         decimal.NullDecimal `json:"basicSalary"`
	Allowances          payroll.Allowances  `json:"allowances"`
	PensionContribution decimal.Decimal     `json:"pensionContribution"`
	PRMFContribution    decimal.Decimal     `json:"prmfContribution"`
	MortgageInterest    decimal.Decimal     `json:"mortgageInterest"`
	InsurancePremium    decimal.Decimal     `json:"insurancePremium"`
}

func (c CompensationRequest) toCompensation() payroll.CompensationStructure {
	return payroll.CompensationStructure{
		BasicSalary:         c.BasicSalary,
		Allowances:          c.Allowances,
		PensionContribution: c.PensionContribution,
		PRMFContribution:    c.PRMFContribution,
		MortgageInterest:    c.MortgageInterest,
		InsurancePremium:    c.InsurancePremium,
	}
}

func (r CreateEmployeeRequest) toEmployee() payroll.Employee {
	return payroll.Employee{
		ID:            r.ID,
		MainName:      r.MainName,
		OtherNames:    r.OtherNames,
		Status:        payroll.EmploymentStatus(r.Status),
		Compensation:  r.Compensation.toCompensation(),
		TaxID:         r.TaxID,
		AccountNumber: r.AccountNumber,
	}
}

// CreateRunRequest starts a payroll run.
type CreateRunRequest struct {
	Period string `json:"period" validate:"required"` // YYYY-MM
}

// ApproveRunRequest approves a run and fixes how it is paid.
type ApproveRunRequest struct {
	ApprovedBy       string `json:"approvedBy" validate:"required,max=128"`
	DisbursementDate string `json:"disbursementDate" validate:"omitempty,datetime=2006-01-02"`
	Method           string `json:"disbursementMethod" validate:"required,oneof=BankTransfer MobileMoney Cheque Cash"`
	Notes            string `json:"notes" validate:"max=1000"`
}

// toApproval stamps the approval at now. The disbursement date, when set,
// must be YYYY-MM-DD.
func (r ApproveRunRequest) toApproval(now time.Time) (payroll.Approval, error) {
	approval := payroll.Approval{
		ApprovedBy: r.ApprovedBy,
		ApprovedAt: now,
		Method:     payroll.DisbursementMethod(r.Method),
		Notes:      r.Notes,
	}
	if r.DisbursementDate == "" {
		return approval, nil
	}
	date, err := time.Parse("2006-01-02", r.DisbursementDate)
	if err != nil {
		return payroll.Approval{}, fmt.Errorf("disbursement date %q: %w", r.DisbursementDate, err)
	}
	approval.DisbursementDate = date
	return approval, nil
}

// DisbursementUpdateRequest is a ledger callback for one employee.
type DisbursementUpdateRequest struct {
	EmployeeID string `json:"employeeId" validate:"required"`
	Status     string `json:"status" validate:"required"`
	Reference  string `json:"reference" validate:"max=128"`
}

// PayslipPreviewRequest computes a line item without storing anything.
type PayslipPreviewRequest struct {
	Period       string              `json:"period" validate:"required"`
	Compensation CompensationRequest `json:"compensation"`
}

// LoadScenarioRequest seeds a demo roster.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LineItemDTO is one employee's payslip. Amounts are whole shillings.
type LineItemDTO struct {
	EmployeeID      string `json:"employeeId"`
	EmployeeName    string `json:"employeeName,omitempty"`
	AccountNumber   string `json:"accountNumber,omitempty"`
	Period          string `json:"period"`
	GrossSalary     int64  `json:"grossSalary"`
	PAYE            int64  `json:"paye"`
	NSSF            int64  `json:"nssf"`
	SHA             int64  `json:"sha"`
	HousingLevy     int64  `json:"housingLevy"`
	TotalDeductions int64  `json:"totalDeductions"`
	NetSalary       int64  `json:"netSalary"`
	Status          string `json:"status"`
}

// TotalsDTO aggregates a run.
type TotalsDTO struct {
	Employees       int   `json:"employees"`
	GrossSalary     int64 `json:"grossSalary"`
	PAYE            int64 `json:"paye"`
	NSSF            int64 `json:"nssf"`
	SHA             int64 `json:"sha"`
	HousingLevy     int64 `json:"housingLevy"`
	TotalDeductions int64 `json:"totalDeductions"`
	NetSalary       int64 `json:"netSalary"`
}

// RunDTO is a payroll run.
type RunDTO struct {
	BatchID         string                    `json:"batchId"`
	Period          string                    `json:"period"`
	Status          string                    `json:"status"`
	ScheduleVersion string                    `json:"scheduleVersion"`
	Lines           []LineItemDTO             `json:"lines"`
	Skipped         []payroll.SkippedEmployee `json:"skipped"`
	Totals          TotalsDTO                 `json:"totals"`
	CreatedAt       string                    `json:"createdAt"`
}

// LedgerEntryDTO is one payment in a disbursement report.
type LedgerEntryDTO struct {
	EmployeeID         string `json:"employeeId"`
	EmployeeName       string `json:"employeeName"`
	NetSalary          int64  `json:"netSalary"`
	AccountNumber      string `json:"accountNumber,omitempty"`
	DisbursementStatus string `json:"disbursementStatus"`
	Reference          string `json:"reference,omitempty"`
}

// ReportDTO is the disbursement report handed to finance.
type ReportDTO struct {
	BatchID            string           `json:"batchId"`
	Period             string           `json:"period"`
	TotalEmployees     int              `json:"totalEmployees"`
	TotalGrossAmount   int64            `json:"totalGrossAmount"`
	TotalDeductions    int64            `json:"totalDeductions"`
	TotalNetAmount     int64            `json:"totalNetAmount"`
	ApprovedBy         string           `json:"approvedBy"`
	ApprovedDate       string           `json:"approvedDate"`
	DisbursementDate   string           `json:"disbursementDate,omitempty"`
	DisbursementMethod string           `json:"disbursementMethod"`
	Status             string           `json:"status"`
	Employees          []LedgerEntryDTO `json:"employees"`
	Notes              string           `json:"notes,omitempty"`
	DisbursedAmount    int64            `json:"disbursedAmount"`
	FailedAmount       int64            `json:"failedAmount"`
}

// DisbursementUpdateResponse reports whether the callback changed anything.
type DisbursementUpdateResponse struct {
	Changed bool      `json:"changed"`
	Report  ReportDTO `json:"report"`
}

// MonthlyTaxRowDTO is one P9 month.
type MonthlyTaxRowDTO struct {
	Month                               string `json:"month"`
	BasicSalary                         int64  `json:"basicSalary"`
	NonCashBenefits                     int64  `json:"nonCashBenefits"`
	ValueOfQuarters                     int64  `json:"valueOfQuarters"`
	TotalGrossPay                       int64  `json:"totalGrossPay"`
	AffordableHousingLevy               int64  `json:"affordableHousingLevy"`
	SocialHealthInsuranceFund           int64  `json:"socialHealthInsuranceFund"`
	PostRetirementMedicalFund           int64  `json:"postRetirementMedicalFund"`
	DefinedContributionRetirementScheme int64  `json:"definedContributionRetirementScheme"`
	OwnerOccupiedInterest               int64  `json:"ownerOccupiedInterest"`
	TotalDeductions                     int64  `json:"totalDeductions"`
	ChargeablePay                       int64  `json:"chargeablePay"`
	TaxCharged                          int64  `json:"taxCharged"`
	PersonalRelief                      int64  `json:"personalRelief"`
	InsuranceRelief                     int64  `json:"insuranceRelief"`
	PAYETax                             int64  `json:"payeTax"`
}

// P9DTO is the annual tax deduction certificate.
type P9DTO struct {
	Year               int                `json:"year"`
	EmployerTaxID      string             `json:"employerTaxId"`
	EmployerName       string             `json:"employerName"`
	EmployeeTaxID      string             `json:"employeeTaxId"`
	EmployeeMainName   string             `json:"employeeMainName"`
	EmployeeOtherNames string             `json:"employeeOtherNames"`
	ScheduleVersion    string             `json:"scheduleVersion"`
	MonthlyData        []MonthlyTaxRowDTO `json:"monthlyData"`
	TotalGrossPay      int64              `json:"totalGrossPay"`
	TotalChargeablePay int64              `json:"totalChargeablePay"`
	TotalTax           int64              `json:"totalTax"`
}

// ScenarioDTO describes a demo roster.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Employees   int    `json:"employees"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// whole renders an amount the engine has already rounded.
func whole(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func dateOrEmpty(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// NewLineItemDTO converts a line item.
func NewLineItemDTO(l payroll.PayrollLineItem) LineItemDTO {
	return LineItemDTO{
		EmployeeID:      l.EmployeeID,
		EmployeeName:    l.EmployeeName,
		AccountNumber:   l.AccountNumber,
		Period:          l.Period.String(),
		GrossSalary:     whole(l.GrossSalary),
		PAYE:            whole(l.PAYE),
		NSSF:            whole(l.NSSF),
		SHA:             whole(l.SHA),
		HousingLevy:     whole(l.HousingLevy),
		TotalDeductions: whole(l.TotalDeductions),
		NetSalary:       whole(l.NetSalary),
		Status:          string(l.Status),
	}
}

// NewRunDTO converts a run.
func NewRunDTO(run payroll.PayrollRun) RunDTO {
	dto := RunDTO{
		BatchID:         run.BatchID,
		Period:          run.Period.String(),
		Status:          string(run.Status),
		ScheduleVersion: run.ScheduleVersion,
		Lines:           make([]LineItemDTO, len(run.Lines)),
		Skipped:         run.Skipped,
		Totals: TotalsDTO{
			Employees:       run.Totals.Employees,
			GrossSalary:     whole(run.Totals.GrossSalary),
			PAYE:            whole(run.Totals.PAYE),
			NSSF:            whole(run.Totals.NSSF),
			SHA:             whole(run.Totals.SHA),
			HousingLevy:     whole(run.Totals.HousingLevy),
			TotalDeductions: whole(run.Totals.TotalDeductions),
			NetSalary:       whole(run.Totals.NetSalary),
		},
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
	}
	for i, l := range run.Lines {
		dto.Lines[i] = NewLineItemDTO(l)
	}
	if dto.Skipped == nil {
		dto.Skipped = []payroll.SkippedEmployee{}
	}
	return dto
}

// NewReportDTO converts a disbursement report.
func NewReportDTO(r payroll.DisbursementReport) ReportDTO {
	dto := ReportDTO{
		BatchID:            r.BatchID,
		Period:             r.Period.String(),
		TotalEmployees:     r.TotalEmployees,
		TotalGrossAmount:   whole(r.TotalGrossAmount),
		TotalDeductions:    whole(r.TotalDeductions),
		TotalNetAmount:     whole(r.TotalNetAmount),
		ApprovedBy:         r.ApprovedBy,
		ApprovedDate:       dateOrEmpty(r.ApprovedDate, time.RFC3339),
		DisbursementDate:   dateOrEmpty(r.DisbursementDate, "2006-01-02"),
		DisbursementMethod: string(r.DisbursementMethod),
		Status:             string(r.Status),
		Employees:          make([]LedgerEntryDTO, len(r.Employees)),
		Notes:              r.Notes,
		DisbursedAmount:    whole(r.DisbursedAmount),
		FailedAmount:       whole(r.FailedAmount),
	}
	for i, e := range r.Employees {
		dto.Employees[i] = LedgerEntryDTO{
			EmployeeID:         e.EmployeeID,
			EmployeeName:       e.EmployeeName,
			NetSalary:          whole(e.NetSalary),
			AccountNumber:      e.AccountNumber,
			DisbursementStatus: string(e.DisbursementStatus),
			Reference:          e.Reference,
		}
	}
	return dto
}

// NewP9DTO converts a P9 record.
func NewP9DTO(rec payroll.P9Record) P9DTO {
	dto := P9DTO{
		Year:               rec.Year,
		EmployerTaxID:      rec.EmployerTaxID,
		EmployerName:       rec.EmployerName,
		EmployeeTaxID:      rec.EmployeeTaxID,
		EmployeeMainName:   rec.EmployeeMainName,
		EmployeeOtherNames: rec.EmployeeOtherNames,
		ScheduleVersion:    rec.ScheduleVersion,
		MonthlyData:        make([]MonthlyTaxRowDTO, len(rec.MonthlyData)),
		TotalGrossPay:      whole(rec.TotalGrossPay),
		TotalChargeablePay: whole(rec.TotalChargeablePay),
		TotalTax:           whole(rec.TotalTax),
	}
	for i, m := range rec.MonthlyData {
		dto.MonthlyData[i] = MonthlyTaxRowDTO{
			Month:                               m.Month,
			BasicSalary:                         whole(m.BasicSalary),
			NonCashBenefits:                     whole(m.NonCashBenefits),
			ValueOfQuarters:                     whole(m.ValueOfQuarters),
			TotalGrossPay:                       whole(m.TotalGrossPay),
			AffordableHousingLevy:               whole(m.AffordableHousingLevy),
			SocialHealthInsuranceFund:           whole(m.SocialHealthInsuranceFund),
			PostRetirementMedicalFund:           whole(m.PostRetirementMedicalFund),
			DefinedContributionRetirementScheme: whole(m.DefinedContributionRetirementScheme),
			OwnerOccupiedInterest:               whole(m.OwnerOccupiedInterest),
			TotalDeductions:                     whole(m.TotalDeductions),
			ChargeablePay:                       whole(m.ChargeablePay),
			TaxCharged:                          whole(m.TaxCharged),
			PersonalRelief:                      whole(m.PersonalRelief),
			InsuranceRelief:                     whole(m.InsuranceRelief),
			PAYETax:                             whole(m.PAYETax),
		}
	}
	return dto
}
