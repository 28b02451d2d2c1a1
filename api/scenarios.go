/*
scenarios.go - Demo rosters for testing and demonstrations

PURPOSE:
  Provides pre-built rosters that populate the store with realistic
  employees for demos. Each scenario exercises a specific part of the
  statutory calculation.

AVAILABLE SCENARIOS:
  statutory-walkthrough: Worked examples A and B plus a suspended employee
  relief-stack:          Pension, PRMF, mortgage and insurance reliefs
  onboarding-gap:        One employee with no basic salary on file
  top-band:              A high earner in the 35% band, NSSF at the cap

HOW SCENARIOS WORK:
  1. Build the roster
  2. Upsert each employee into the store
  3. Remember the scenario id

  Loading never deletes anything. Runs and reports are an audit trail,
  so a scenario only adds or replaces employees by id.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "statutory-walkthrough"}

SEE ALSO:
  - handlers.go: Employee and payroll handlers
  - payroll/types.go: Employee, CompensationStructure
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	roster func() []payroll.Employee
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "statutory-walkthrough",
			Name:        "Statutory Walkthrough",
			Description: "Gross 120,000 across four PAYE bands, gross 20,000 fully relieved, one suspended employee",
		},
		roster: walkthroughRoster,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "relief-stack",
			Name:        "Relief Stack",
			Description: "Pension above the cap, PRMF, mortgage interest and insurance premium relief",
		},
		roster: reliefStackRoster,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "onboarding-gap",
			Name:        "Onboarding Gap",
			Description: "A new hire without a basic salary is left out of the run and reported",
		},
		roster: onboardingGapRoster,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "top-band",
			Name:        "Top Band",
			Description: "Executive pay reaching the 35% band with NSSF at its ceiling",
		},
		roster: topBandRoster,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dto := s.ScenarioDTO
		dto.Employees = len(s.roster())
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the most recently loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	dto := s.ScenarioDTO
	dto.Employees = len(s.roster())
	writeJSON(w, http.StatusOK, dto)
}

// LoadScenario upserts a scenario's roster into the store.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	n, err := h.loadRoster(r.Context(), s.roster())
	if err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = s.ID

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("employees", n))
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": s.ID, "employees": n})
}

func (h *Handler) loadRoster(ctx context.Context, roster []payroll.Employee) (int, error) {
	for _, emp := range roster {
		if err := h.Store.SaveEmployee(ctx, emp); err != nil {
			return 0, fmt.Errorf("save %s: %w", emp.ID, err)
		}
	}
	return len(roster), nil
}

// =============================================================================
// ROSTERS
// =============================================================================

func kes(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func basic(n int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(kes(n))
}

func walkthroughRoster() []payroll.Employee {
	return []payroll.Employee{
		{
			ID:         "emp-001",
			MainName:   "Wanjiku",
			OtherNames: "Grace",
			Status:     payroll.StatusActive,
			TaxID:      "A001234567B",
			Compensation: payroll.CompensationStructure{
				BasicSalary: basic(80000),
				Allowances: payroll.Allowances{
					Housing:   kes(20000),
					Transport: kes(10000),
					Medical:   kes(5000),
					Other:     kes(5000),
				},
			},
			AccountNumber: "0110234567",
		},
		{
			ID:            "emp-002",
			MainName:      "Mwangi",
			OtherNames:    "Peter Kamau",
			Status:        payroll.StatusActive,
			TaxID:         "A002345678C",
			Compensation:  payroll.CompensationStructure{BasicSalary: basic(20000)},
			AccountNumber: "0110345678",
		},
		{
			ID:            "emp-003",
			MainName:      "Achieng",
			OtherNames:    "Mary",
			Status:        payroll.StatusSuspended,
			TaxID:         "A003456789D",
			Compensation:  payroll.CompensationStructure{BasicSalary: basic(45000)},
			AccountNumber: "0110456789",
		},
	}
}

func reliefStackRoster() []payroll.Employee {
	return []payroll.Employee{
		{
			ID:         "emp-101",
			MainName:   "Kiprop",
			OtherNames: "David",
			Status:     payroll.StatusActive,
			TaxID:      "A101234567E",
			Compensation: payroll.CompensationStructure{
				BasicSalary:         basic(150000),
				Allowances:          payroll.Allowances{Housing: kes(30000), Transport: kes(15000)},
				PensionContribution: kes(40000),
				PRMFContribution:    kes(2000),
				MortgageInterest:    kes(35000),
				InsurancePremium:    kes(8000),
			},
			AccountNumber: "0220134567",
		},
		{
			ID:         "emp-102",
			MainName:   "Njeri",
			OtherNames: "Ann",
			Status:     payroll.StatusActive,
			TaxID:      "A102345678F",
			Compensation: payroll.CompensationStructure{
				BasicSalary:         basic(60000),
				Allowances:          payroll.Allowances{Medical: kes(4000)},
				PensionContribution: kes(5000),
			},
			AccountNumber: "0220245678",
		},
	}
}

func onboardingGapRoster() []payroll.Employee {
	return []payroll.Employee{
		{
			ID:            "emp-201",
			MainName:      "Omondi",
			OtherNames:    "Brian",
			Status:        payroll.StatusActive,
			TaxID:         "A201234567G",
			Compensation:  payroll.CompensationStructure{BasicSalary: basic(55000)},
			AccountNumber: "0330134567",
		},
		{
			ID:         "emp-202",
			MainName:   "Chebet",
			OtherNames: "Faith",
			Status:     payroll.StatusActive,
			TaxID:      "A202345678H",
			Compensation: payroll.CompensationStructure{
				Allowances: payroll.Allowances{Transport: kes(6000)},
			},
		},
	}
}

func topBandRoster() []payroll.Employee {
	return []payroll.Employee{
		{
			ID:         "emp-301",
			MainName:   "Mutua",
			OtherNames: "James",
			Status:     payroll.StatusActive,
			TaxID:      "A301234567J",
			Compensation: payroll.CompensationStructure{
				BasicSalary: basic(900000),
				Allowances: payroll.Allowances{
					Housing:   kes(150000),
					Transport: kes(50000),
				},
				PensionContribution: kes(30000),
			},
			AccountNumber: "0440134567",
		},
	}
}
