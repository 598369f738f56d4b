/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money leaves the API
  both as integer cents (authoritative) and as a decimal string for
  display.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:     EmployeeDTO (request bodies go through factory.EmployeeJSON)
  Settings:     SettingsDTO
  Calculation:  CalculateRequest, BatchRequest, BatchResponse
  Reports:      AccrualsResponse, BurdenSummaryResponse
  Scenarios:    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: request document validation
*/
package api

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/warp/labor-engine/burden"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	MonthlySalary      string        `json:"monthly_salary"`
	MonthlySalaryCents generic.Cents `json:"monthly_salary_cents"`
	Admission          string        `json:"admission"`
	Termination        *string       `json:"termination,omitempty"`
	Sector             string        `json:"sector"`
	Active             bool          `json:"active"`
	CreatedAt          string        `json:"created_at,omitempty"`
	UpdatedAt          string        `json:"updated_at,omitempty"`
}

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:                 e.ID,
		Name:               e.Name,
		MonthlySalary:      e.MonthlySalary.String(),
		MonthlySalaryCents: e.MonthlySalary,
		Admission:          e.Admission.String(),
		Sector:             e.Sector,
		Active:             e.Active,
	}
	if e.Termination != nil {
		s := e.Termination.String()
		dto.Termination = &s
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO shows the tenant's stored settings next to the effective
// tables: built-in defaults with the tenant's years layered on top.
type SettingsDTO struct {
	TenantID  string                       `json:"tenant_id"`
	Taxes     map[int]payroll.TaxYear      `json:"taxes"`
	Proration payroll.ProrationRules       `json:"proration"`
	Effective payroll.TaxParameterSnapshot `json:"effective"`
	UpdatedAt string                       `json:"updated_at,omitempty"`
}

// =============================================================================
// CALCULATIONS
// =============================================================================

// CalculateRequest is the body of POST /api/calculations.
type CalculateRequest struct {
	EmployeeID string          `json:"employee_id"`
	Period     string          `json:"period"`
	Override   json.RawMessage `json:"override,omitempty"`
}

// BatchRequest is the body of POST /api/calculations/batch.
type BatchRequest struct {
	Period   string          `json:"period"`
	Override json.RawMessage `json:"override,omitempty"`
}

// BatchItem is one employee's outcome in a batch.
type BatchItem struct {
	EmployeeID    string            `json:"employee_id"`
	CalculationID string            `json:"calculation_id,omitempty"`
	Idempotent    bool              `json:"idempotent,omitempty"`
	Error         string            `json:"error,omitempty"`
	Code          string            `json:"code,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// BatchResponse summarizes a batch run.
type BatchResponse struct {
	Period     string      `json:"period"`
	Created    int         `json:"created"`
	Idempotent int         `json:"idempotent"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
}

// =============================================================================
// REPORTS
// =============================================================================

// AccrualsResponse is the period engine output for one employee.
type AccrualsResponse struct {
	EmployeeID string                    `json:"employee_id"`
	From       string                    `json:"from"`
	To         string                    `json:"to"`
	Months     []AccrualMonthDTO         `json:"months"`
	Totals     payroll.PeriodTotalsCents `json:"totals"`
}

// AccrualMonthDTO is one month of the period engine, rounded to cents for
// display. Totals are rounded from the unrounded sums, not from these.
type AccrualMonthDTO struct {
	Month      string                `json:"month"`
	DaysWorked int                   `json:"days_worked"`
	Eligible   bool                  `json:"eligible"`
	Results    payroll.RecordResults `json:"results"`
}

// BurdenSummaryResponse aggregates every employee's burden by pay item.
type BurdenSummaryResponse struct {
	From      string             `json:"from"`
	To        string             `json:"to"`
	Employees int                `json:"employees"`
	Items     []burden.ItemTotal `json:"items"`
	Total     generic.Cents      `json:"total_cents"`
}

// =============================================================================
// MISC
// =============================================================================

// HealthDTO reports dependency status.
type HealthDTO struct {
	Status           string `json:"status"`
	Store            string `json:"store"`
	StripeConfigured bool   `json:"stripe_configured"`
	Timezone         string `json:"timezone"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Period      string `json:"period"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse is the employee created by a scenario and its
// calculation for the scenario month.
type LoadScenarioResponse struct {
	Scenario    ScenarioDTO                `json:"scenario"`
	Employee    EmployeeDTO                `json:"employee"`
	Calculation *payroll.CalculationRecord `json:"calculation"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}
