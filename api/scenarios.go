/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that create one employee and calculate the
	month that demonstrates a specific rule. Useful for demos and as a
	smoke test of a fresh deployment.

AVAILABLE SCENARIOS:

	full-month:      admitted 2025-01-01, salary 3000.00, period 2025-01
	                 full salary, eligible for 13th/vacation
	mid-month-hire:  admitted 2025-01-15, period 2025-01
	                 17 days, 1700.00, still eligible (17 >= 15)
	short-contract:  2025-02-10 to 2025-02-14, period 2025-02
	                 5 days, 500.00, no 13th/vacation accrual

HOW SCENARIOS WORK:
 1. Upsert the scenario employee (fixed id per scenario)
 2. Calculate the scenario period through the normal Calculator
 3. Return both; loading twice replays the same record (idempotent)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-month-hire"}

NOTE:

	Only mounted outside prod. Records are immutable, so nothing is reset.

SEE ALSO:
  - handlers.go: Handler
  - server.go: dev-only mount
*/
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	employee func(tenantID string) payroll.Employee
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "full-month",
			Name:        "Full Month",
			Description: "Admitted on the 1st: full salary, eligible for 13th salary and vacation",
			Period:      "2025-01",
		},
		employee: func(tenantID string) payroll.Employee {
			return scenarioEmployee(tenantID, "scenario-full-month", "Full Month Demo", "2025-01-01", "")
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mid-month-hire",
			Name:        "Mid-Month Hire",
			Description: "Admitted on the 15th: 17 days prorated over a 30-day month, still eligible",
			Period:      "2025-01",
		},
		employee: func(tenantID string) payroll.Employee {
			return scenarioEmployee(tenantID, "scenario-mid-month-hire", "Mid-Month Hire Demo", "2025-01-15", "")
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "short-contract",
			Name:        "Short Contract",
			Description: "Five days of work: prorated salary, below the 15-day accrual threshold",
			Period:      "2025-02",
		},
		employee: func(tenantID string) payroll.Employee {
			return scenarioEmployee(tenantID, "scenario-short-contract", "Short Contract Demo", "2025-02-10", "2025-02-14")
		},
	},
}

func scenarioEmployee(tenantID, id, name, admission, termination string) payroll.Employee {
	e := payroll.Employee{
		ID:            id,
		TenantID:      tenantID,
		Name:          name,
		MonthlySalary: 300000,
		Admission:     generic.MustParseDate(admission),
		Sector:        "commerce",
		Active:        termination == "",
	}
	if termination != "" {
		d := generic.MustParseDate(termination)
		e.Termination = &d
	}
	return e
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario creates the scenario employee and calculates its month.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeErr(w, r, generic.NotFound(nil, "scenario.load", "unknown scenario"))
		return
	}

	resp, err := h.loadScenario(r.Context(), s)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("scenario", s.ID).Str("calculation_id", resp.Calculation.ID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) (LoadScenarioResponse, error) {
	tenant := TenantFrom(ctx)
	emp := s.employee(tenant)

	now := h.now().UTC()
	emp.CreatedAt, emp.UpdatedAt = now, now
	existing, err := h.Store.GetEmployee(ctx, tenant, emp.ID)
	switch {
	case err == nil:
		emp.CreatedAt = existing.CreatedAt
	case !errors.Is(err, generic.ErrEmployeeNotFound):
		return LoadScenarioResponse{}, generic.Internal(err, "scenario.load_employee")
	}
	if _, err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return LoadScenarioResponse{}, generic.Internal(err, "scenario.save_employee")
	}

	rec, err := h.Calculator.Calculate(ctx, payroll.Request{
		TenantID:   tenant,
		EmployeeID: emp.ID,
		ActorID:    ActorFrom(ctx),
		Period:     s.Period,
	})
	if err != nil {
		return LoadScenarioResponse{}, err
	}
	return LoadScenarioResponse{
		Scenario:    s.ScenarioDTO,
		Employee:    toEmployeeDTO(emp),
		Calculation: rec,
	}, nil
}
