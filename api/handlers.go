/*
handlers.go - HTTP API handlers for the payroll host

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the engine and the
  store. The engine stays pure; every side effect lives here.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List roster
    POST   /api/employees                          Create or replace employee
    GET    /api/employees/{id}                     Get employee
    GET    /api/employees/{id}/p9?year=YYYY        Annual P9 certificate

  Payroll:
    POST   /api/payroll/runs                       Build and store a run
    GET    /api/payroll/runs                       List runs
    GET    /api/payroll/runs/{batchId}             Get run
    GET    /api/payroll/runs/{batchId}/payslips/{employeeId}   One line
    POST   /api/payroll/runs/{batchId}/approve     Approve, build report
    GET    /api/payroll/reports/{batchId}          Get disbursement report
    GET    /api/payroll/reports/{batchId}/disbursements   Applied callbacks
    POST   /api/payroll/reports/{batchId}/disbursements   Ledger callback
    POST   /api/payroll/payslip/preview            Ad-hoc payslip

  Reference:
    GET    /api/schedules                          Registered statutory schedules

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: payroll.Store (sqlite in production, memory in tests)
  - Registry: statutory schedules by tax year
  - Processor / Certificates: engine entry points
  - Logger, Metrics: zap and Prometheus

RUN SERIALIZATION:
  Run creation is guarded per period. Two concurrent POSTs for the same
  month build two distinct batches one after the other, never interleaved.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid period or date, invalid compensation
  - 404: Employee, run or report not found
  - 409: Already approved, terminal disbursement status
  - 422: No active employee with valid compensation to pay
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        payroll.Store
	Registry     *statutory.Registry
	Processor    *payroll.RunProcessor
	Certificates *payroll.CertificateComputer
	Logger       *zap.Logger
	Metrics      *Metrics

	// Now stamps approvals. Replaceable in tests.
	Now func() time.Time

	validate *validator.Validate
	periods  periodLocks

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires the engine to store. A nil logger discards output.
func NewHandler(store payroll.Store, registry *statutory.Registry, employer payroll.Employer, logger *zap.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		Store:        store,
		Registry:     registry,
		Processor:    payroll.NewRunProcessor(registry, logger),
		Certificates: payroll.NewCertificateComputer(registry, employer),
		Logger:       logger.Named("api"),
		Metrics:      metrics,
		Now:          func() time.Time { return time.Now().UTC() },
		validate:     newValidator(),
	}
}

// newValidator reports field names by their json tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the roster in roster order.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.fail(w, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp := req.toEmployee()
	if err := emp.Compensation.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid compensation", err)
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.fail(w, "Failed to save employee", err)
		return
	}

	h.Logger.Info("employee saved", zap.String("employee_id", emp.ID), zap.String("status", string(emp.Status)))
	writeJSON(w, http.StatusCreated, emp)
}

// GetP9 returns the annual certificate for an employee.
func (h *Handler) GetP9(w http.ResponseWriter, r *http.Request) {
	yearParam := r.URL.Query().Get("year")
	year, err := strconv.Atoi(yearParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year (use YYYY)", &payroll.InvalidPeriodError{Input: yearParam})
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get employee", err)
		return
	}

	rec, err := h.Certificates.Compute(emp, year)
	if err != nil {
		h.fail(w, "Failed to compute P9", err)
		return
	}
	writeJSON(w, http.StatusOK, NewP9DTO(rec))
}

// =============================================================================
// PAYROLL RUN HANDLERS
// =============================================================================

// CreateRun builds a run for a period from the current roster and stores it.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if !h.decode(w, r, &req) {
		return
	}

	period, err := payroll.ParsePayPeriod(req.Period)
	if err != nil {
		h.Metrics.RunsCreated.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	unlock := h.periods.lock(period.String())
	defer unlock()

	roster, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.Metrics.RunsCreated.WithLabelValues("error").Inc()
		h.fail(w, "Failed to load roster", err)
		return
	}

	run, err := h.Processor.Process(roster, period)
	if err != nil {
		outcome := "rejected"
		if errors.Is(err, payroll.ErrEmptyRoster) {
			outcome = "empty_roster"
		}
		h.Metrics.RunsCreated.WithLabelValues(outcome).Inc()
		h.fail(w, "Failed to process payroll run", err)
		return
	}

	if err := h.Store.SaveRun(r.Context(), run); err != nil {
		h.Metrics.RunsCreated.WithLabelValues("error").Inc()
		h.fail(w, "Failed to save payroll run", err)
		return
	}

	h.Metrics.RunsCreated.WithLabelValues("created").Inc()
	h.Metrics.EmployeesSkipped.Add(float64(len(run.Skipped)))
	h.Metrics.LastRunNet.Set(run.Totals.NetSalary.InexactFloat64())
	writeJSON(w, http.StatusCreated, NewRunDTO(run))
}

// ListRuns returns every stored run, oldest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		h.fail(w, "Failed to list payroll runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = NewRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a single run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		h.fail(w, "Failed to get payroll run", err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunDTO(run))
}

// GetPayslip returns one employee's line from a stored run.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		h.fail(w, "Failed to get payroll run", err)
		return
	}

	employeeID := chi.URLParam(r, "employeeId")
	line, ok := run.Line(employeeID)
	if !ok {
		h.fail(w, "Employee not in payroll run",
			fmt.Errorf("%w: %s not paid in %s", payroll.ErrEmployeeNotFound, employeeID, run.BatchID))
		return
	}
	writeJSON(w, http.StatusOK, NewLineItemDTO(line))
}

// ApproveRun approves a processed run and stores its disbursement report.
func (h *Handler) ApproveRun(w http.ResponseWriter, r *http.Request) {
	var req ApproveRunRequest
	if !h.decode(w, r, &req) {
		return
	}

	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		h.fail(w, "Failed to get payroll run", err)
		return
	}
	if run.Status == payroll.RunApproved {
		writeError(w, http.StatusConflict, "Payroll run already approved", payroll.ErrAlreadyApproved)
		return
	}

	approval, err := req.toApproval(h.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid disbursement date (use YYYY-MM-DD)", err)
		return
	}

	approved := payroll.ApproveRun(run)
	report, err := payroll.BuildDisbursementReport(approved, approval)
	if err != nil {
		h.fail(w, "Failed to build disbursement report", err)
		return
	}

	if err := h.Store.SaveApproval(r.Context(), approved, report); err != nil {
		h.fail(w, "Failed to approve payroll run", err)
		return
	}

	h.Logger.Info("payroll run approved",
		zap.String("batch_id", run.BatchID),
		zap.String("approved_by", approval.ApprovedBy),
		zap.String("method", string(approval.Method)))
	writeJSON(w, http.StatusOK, NewReportDTO(report))
}

// =============================================================================
// DISBURSEMENT HANDLERS
// =============================================================================

// GetReport returns the disbursement report for a batch.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Store.GetReport(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		h.fail(w, "Failed to get disbursement report", err)
		return
	}
	writeJSON(w, http.StatusOK, NewReportDTO(report))
}

// ListDisbursements returns the applied ledger callbacks for a batch,
// oldest first.
func (h *Handler) ListDisbursements(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")
	if _, err := h.Store.GetReport(r.Context(), batchID); err != nil {
		h.fail(w, "Failed to get disbursement report", err)
		return
	}

	updates, err := h.Store.ListUpdates(r.Context(), batchID)
	if err != nil {
		h.fail(w, "Failed to list disbursement updates", err)
		return
	}
	if updates == nil {
		updates = []payroll.DisbursementUpdate{}
	}
	writeJSON(w, http.StatusOK, updates)
}

// ApplyDisbursement records a ledger callback. Replays return 200 with
// changed == false.
func (h *Handler) ApplyDisbursement(w http.ResponseWriter, r *http.Request) {
	var req DisbursementUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	update := payroll.DisbursementUpdate{
		BatchID:    chi.URLParam(r, "batchId"),
		EmployeeID: req.EmployeeID,
		Status:     payroll.EntryStatus(req.Status),
		Reference:  req.Reference,
	}

	report, changed, err := h.Store.ApplyDisbursement(r.Context(), update)
	if err != nil {
		h.Metrics.DisbursementUpdates.WithLabelValues(req.Status, "rejected").Inc()
		h.fail(w, "Failed to apply disbursement update", err)
		return
	}

	outcome := "replayed"
	if changed {
		outcome = "applied"
		h.Logger.Info("disbursement update applied",
			zap.String("batch_id", update.BatchID),
			zap.String("employee_id", update.EmployeeID),
			zap.String("status", string(update.Status)),
			zap.String("report_status", string(report.Status)))
	}
	h.Metrics.DisbursementUpdates.WithLabelValues(req.Status, outcome).Inc()

	writeJSON(w, http.StatusOK, DisbursementUpdateResponse{Changed: changed, Report: NewReportDTO(report)})
}

// =============================================================================
// PREVIEW AND REFERENCE HANDLERS
// =============================================================================

// PreviewPayslip computes a line item for an ad-hoc compensation structure.
func (h *Handler) PreviewPayslip(w http.ResponseWriter, r *http.Request) {
	var req PayslipPreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	period, err := payroll.ParsePayPeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}
	schedule, err := h.Registry.ForYear(period.Year)
	if err != nil {
		h.fail(w, "No statutory schedule", err)
		return
	}

	line, err := payroll.NewPayslipComputer(schedule).Compute("preview", req.Compensation.toCompensation(), period)
	if err != nil {
		h.fail(w, "Failed to compute payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, NewLineItemDTO(line))
}

// ListSchedules returns every registered schedule, oldest first.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules := h.Registry.Schedules()
	docs := make([]factory.ScheduleDoc, len(schedules))
	for i, s := range schedules {
		docs[i] = factory.ToDoc(s)
	}
	writeJSON(w, http.StatusOK, docs)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

// validationDetails flattens validator errors into "field: tag" pairs.
func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, len(verrs))
	for i, e := range verrs {
		if e.Param() != "" {
			parts[i] = e.Field() + ": " + e.Tag() + "=" + e.Param()
		} else {
			parts[i] = e.Field() + ": " + e.Tag()
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// statusFor maps engine and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, payroll.ErrEmptyRoster):
		return http.StatusUnprocessableEntity
	case payroll.IsConflict(err):
		return http.StatusConflict
	case payroll.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the mapped status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// periodLocks hands out one mutex per pay period.
type periodLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *periodLocks) lock(key string) (unlock func()) {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
