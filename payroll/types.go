/*
Package payroll implements the labor-cost calculation engine.

PURPOSE:
  Given an employee's salary, admission/termination dates and a set of
  year-indexed progressive tax tables, computes prorated salary, mandatory
  contributions, proportional 13th-salary and vacation accruals, and
  aggregates them into per-month and period totals. Results are persisted
  once per distinct fingerprint of their inputs.

KEY CONCEPTS:
  - EmploymentSpan: admission, optional termination, monthly salary
  - Table/Bracket: progressive contribution tables (taxtable.go)
  - Commercial month: proration always divides by 30 days (prorate.go)
  - Eligibility: the 15-day cliff vs. the continuous days/30 accrual
    (policies.go); two separate functions, never merged
  - Engine: month-by-month accrual over a span (accrual.go)
  - Fingerprint: content address of a calculation (fingerprint.go)
  - Calculator: the single computation entry point (calculator.go)

PURITY:
  Everything except Calculator is a pure function of its inputs and safe
  for concurrent use without locking. Floating point is used for
  intermediate math; generic.ToCents is applied once, when a
  CalculationRecord is built.

SEE ALSO:
  - generic/: dates, periods, cents, errors
  - burden/: employer-burden view built on the continuous accrual policy
*/
package payroll

import (
	"fmt"
	"time"

	"github.com/warp/labor-engine/generic"
)

// =============================================================================
// EMPLOYEE / EMPLOYMENT SPAN
// =============================================================================

// Employee is the stored employee document. Owned by the persistence layer;
// the engine only reads it.
type Employee struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	Name          string        `json:"name"`
	MonthlySalary generic.Cents `json:"monthly_salary_cents"`
	Admission     generic.Date  `json:"admission"`
	Termination   *generic.Date `json:"termination,omitempty"`
	Sector        string        `json:"sector,omitempty"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Span is the employee's employment span.
func (e Employee) Span() EmploymentSpan {
	return EmploymentSpan{
		Admission:     e.Admission,
		Termination:   e.Termination,
		MonthlySalary: e.MonthlySalary,
	}
}

// EmploymentSpan is the input of every accrual computation.
type EmploymentSpan struct {
	Admission     generic.Date
	Termination   *generic.Date // inclusive; nil while employed
	MonthlySalary generic.Cents
}

// Validate checks termination >= admission.
func (s EmploymentSpan) Validate() error {
	if s.Admission.IsZero() {
		return fmt.Errorf("%w: admission is required", generic.ErrInvalidDate)
	}
	if s.Termination != nil && s.Termination.Before(s.Admission) {
		return fmt.Errorf("%w: %s < %s", generic.ErrInvalidSpan, s.Termination, s.Admission)
	}
	return nil
}

// ValidateAsOf additionally rejects an admission after today.
func (s EmploymentSpan) ValidateAsOf(today generic.Date) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Admission.After(today) {
		return fmt.Errorf("%w: admission %s is in the future", generic.ErrInvalidSpan, s.Admission)
	}
	return nil
}

// End is the last day of employment, or `open` when still employed.
func (s EmploymentSpan) End(open generic.Date) generic.Date {
	if s.Termination != nil {
		return *s.Termination
	}
	return open
}

// Salary is the monthly salary in major units for engine arithmetic.
func (s EmploymentSpan) Salary() float64 { return generic.FromCents(s.MonthlySalary) }

// =============================================================================
// TENANT SETTINGS
// =============================================================================

// Settings is the per-tenant configuration document: year-indexed tax
// tables and proration rules. Years missing here fall back to the built-in
// defaults.
type Settings struct {
	TenantID  string          `json:"tenant_id"`
	Taxes     map[int]TaxYear `json:"taxes,omitempty"`
	Proration *ProrationRules `json:"proration,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
