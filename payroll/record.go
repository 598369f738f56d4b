package payroll

import (
	"time"

	"github.com/warp/labor-engine/generic"
)

// SchemaVersion is bumped whenever the persisted record layout changes.
const SchemaVersion = 1

// CalculationRecord is the immutable result of one (employee, period,
// parameters) triple. Created once per fingerprint, never mutated.
type CalculationRecord struct {
	ID         string             `json:"id"`
	TenantID   string             `json:"tenant_id"`
	EmployeeID string             `json:"employee_id"`
	Period     string             `json:"period"`
	Parameters ParametersSnapshot `json:"parameters"`
	Inputs     RecordInputs       `json:"inputs"`
	Results    RecordResults      `json:"results"`
	Hashes     RecordHashes       `json:"hashes"`

	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	SchemaVersion int       `json:"schema_version"`

	// Idempotent is set on the returned copy when the record already
	// existed. Never persisted.
	Idempotent bool `json:"idempotent,omitempty"`
}

// RecordInputs echoes the employee fields the calculation read.
type RecordInputs struct {
	MonthlySalary generic.Cents `json:"monthly_salary_cents"`
	Admission     generic.Date  `json:"admission"`
	Termination   *generic.Date `json:"termination"`
}

// RecordResults holds every computed figure in integer cents.
type RecordResults struct {
	DaysWorked int  `json:"days_worked"`
	Eligible   bool `json:"eligible"`

	ProratedSalary      generic.Cents `json:"prorated_salary_cents"`
	FlatContribution    generic.Cents `json:"flat_contribution_cents"`
	PrimaryContribution generic.Cents `json:"primary_contribution_cents"`
	IncomeTax           generic.Cents `json:"income_tax_cents"`
	ThirteenthSalary    generic.Cents `json:"thirteenth_salary_cents"`
	Vacation            generic.Cents `json:"vacation_cents"`
	VacationBonus       generic.Cents `json:"vacation_bonus_cents"`

	Termination TerminationResults `json:"termination"`
	Totals      RecordTotals       `json:"totals"`
}

// TerminationResults is the demonstrative termination section: the notice
// indemnity (not computed by the monthly calculation, always 0) and the 40%
// penalty on the month's flat contribution.
type TerminationResults struct {
	NoticeIndemnity generic.Cents `json:"notice_indemnity_cents"`
	FlatPenalty40   generic.Cents `json:"flat_penalty_40_cents"`
}

// RecordTotals are sums of the rounded fields above, so they always add up.
type RecordTotals struct {
	Gross      generic.Cents `json:"gross_cents"`
	Deductions generic.Cents `json:"deductions_cents"`
	Net        generic.Cents `json:"net_cents"`
}

type RecordHashes struct {
	Fingerprint string `json:"fingerprint_sha256"`
}

// FlatPenaltyRate is the termination penalty applied to the flat contribution.
const FlatPenaltyRate = 0.4

// RoundResults converts an unrounded month into the persisted results. This
// is the only place engine floats become cents.
func RoundResults(m MonthAccrual) RecordResults {
	r := RecordResults{
		DaysWorked:          m.DaysWorked,
		Eligible:            m.Eligible,
		ProratedSalary:      generic.ToCents(m.Salary),
		FlatContribution:    generic.ToCents(m.FlatContribution),
		PrimaryContribution: generic.ToCents(m.PrimaryContribution),
		IncomeTax:           generic.ToCents(m.IncomeTax),
		ThirteenthSalary:    generic.ToCents(m.ThirteenthSalary),
		Vacation:            generic.ToCents(m.Vacation),
		VacationBonus:       generic.ToCents(m.VacationBonus),
		Termination: TerminationResults{
			NoticeIndemnity: 0,
			FlatPenalty40:   generic.ToCents(m.FlatContribution * FlatPenaltyRate),
		},
	}
	gross := r.ProratedSalary + r.ThirteenthSalary + r.Vacation + r.VacationBonus
	deductions := r.PrimaryContribution + r.IncomeTax
	r.Totals = RecordTotals{
		Gross:      gross,
		Deductions: deductions,
		Net:        generic.MaxCents(0, gross-deductions),
	}
	return r
}

// PeriodTotalsCents is PeriodTotals as shown to callers.
type PeriodTotalsCents struct {
	Salary              generic.Cents `json:"salary_cents"`
	FlatContribution    generic.Cents `json:"flat_contribution_cents"`
	PrimaryContribution generic.Cents `json:"primary_contribution_cents"`
	IncomeTax           generic.Cents `json:"income_tax_cents"`
	ThirteenthSalary    generic.Cents `json:"thirteenth_salary_cents"`
	Vacation            generic.Cents `json:"vacation_cents"`
	VacationBonus       generic.Cents `json:"vacation_bonus_cents"`
	FlatOnAccruals      generic.Cents `json:"flat_on_accruals_cents"`
	EligibleMonths      int           `json:"eligible_months"`

	Gross      generic.Cents `json:"gross_cents"`
	Deductions generic.Cents `json:"deductions_cents"`
	Net        generic.Cents `json:"net_cents"`
}

// RoundTotals rounds each unrounded period total once. Months are not
// rounded first, so rounding error does not compound across the span.
func RoundTotals(t PeriodTotals) PeriodTotalsCents {
	return PeriodTotalsCents{
		Salary:              generic.ToCents(t.Salary),
		FlatContribution:    generic.ToCents(t.FlatContribution),
		PrimaryContribution: generic.ToCents(t.PrimaryContribution),
		IncomeTax:           generic.ToCents(t.IncomeTax),
		ThirteenthSalary:    generic.ToCents(t.ThirteenthSalary),
		Vacation:            generic.ToCents(t.Vacation),
		VacationBonus:       generic.ToCents(t.VacationBonus),
		FlatOnAccruals:      generic.ToCents(t.FlatOnAccruals),
		EligibleMonths:      t.EligibleMonths,
		Gross:               generic.ToCents(t.Gross),
		Deductions:          generic.ToCents(t.Deductions),
		Net:                 generic.ToCents(t.Net),
	}
}

// CalculationFilter narrows ListCalculations.
type CalculationFilter struct {
	TenantID   string
	EmployeeID string
	Period     string
	Limit      int
}
