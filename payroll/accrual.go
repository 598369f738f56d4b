package payroll

import (
	"math"

	"github.com/warp/labor-engine/generic"
)

// =============================================================================
// PERIOD ACCRUAL ENGINE
// =============================================================================

// Engine computes month-by-month accruals over an employment span. It is a
// plain value: safe to copy, share and call concurrently.
type Engine struct {
	Rules  ProrationRules
	Tables TaxParameterSnapshot
}

// NewEngine returns an engine with the default proration rules.
func NewEngine(tables TaxParameterSnapshot) Engine {
	return Engine{Rules: DefaultProrationRules(), Tables: tables}
}

// MonthAccrual is one calendar month's contribution. Values are in major
// currency units and unrounded.
type MonthAccrual struct {
	Month      generic.Month `json:"month"`
	DaysWorked int           `json:"days_worked"`
	Eligible   bool          `json:"eligible"`

	Salary              float64 `json:"salary"`
	FlatContribution    float64 `json:"flat_contribution"`
	PrimaryContribution float64 `json:"primary_contribution"`
	IncomeTax           float64 `json:"income_tax"`

	ThirteenthSalary float64 `json:"thirteenth_salary"`
	Vacation         float64 `json:"vacation"`
	VacationBonus    float64 `json:"vacation_bonus"`
	FlatOnAccruals   float64 `json:"flat_on_accruals"`
}

// Deductions are the employee-side contributions of the month.
func (m MonthAccrual) Deductions() float64 { return m.PrimaryContribution + m.IncomeTax }

// Gross is salary plus the month's benefit accruals.
func (m MonthAccrual) Gross() float64 {
	return m.Salary + m.ThirteenthSalary + m.Vacation + m.VacationBonus
}

// PeriodTotals aggregates every month of a PeriodResult.
type PeriodTotals struct {
	Salary              float64 `json:"salary"`
	FlatContribution    float64 `json:"flat_contribution"`
	PrimaryContribution float64 `json:"primary_contribution"`
	IncomeTax           float64 `json:"income_tax"`
	ThirteenthSalary    float64 `json:"thirteenth_salary"`
	Vacation            float64 `json:"vacation"`
	VacationBonus       float64 `json:"vacation_bonus"`
	FlatOnAccruals      float64 `json:"flat_on_accruals"`
	EligibleMonths      int     `json:"eligible_months"`

	Gross      float64 `json:"gross"`
	Deductions float64 `json:"deductions"`
	Net        float64 `json:"net"`
}

func (t *PeriodTotals) add(m MonthAccrual) {
	t.Salary += m.Salary
	t.FlatContribution += m.FlatContribution
	t.PrimaryContribution += m.PrimaryContribution
	t.IncomeTax += m.IncomeTax
	t.ThirteenthSalary += m.ThirteenthSalary
	t.Vacation += m.Vacation
	t.VacationBonus += m.VacationBonus
	t.FlatOnAccruals += m.FlatOnAccruals
	if m.Eligible {
		t.EligibleMonths++
	}
	t.Gross = t.Salary + t.ThirteenthSalary + t.Vacation + t.VacationBonus
	t.Deductions = t.PrimaryContribution + t.IncomeTax
	t.Net = math.Max(0, t.Gross-t.Deductions)
}

// PeriodResult is the engine output for a span.
type PeriodResult struct {
	Months []MonthAccrual `json:"months"`
	Totals PeriodTotals   `json:"totals"`
}

// Run iterates every calendar month touched by the span within window and
// accumulates the months with at least one worked day. An open-ended span
// is bounded by window.End.
func (e Engine) Run(span EmploymentSpan, window generic.Period) (PeriodResult, error) {
	if err := span.Validate(); err != nil {
		return PeriodResult{}, err
	}
	if !window.Valid() {
		return PeriodResult{}, generic.ErrInvalidPeriod
	}

	employed := generic.Period{Start: span.Admission, End: span.End(window.End)}
	bounded, ok := generic.Intersect(employed, window)
	if !ok {
		return PeriodResult{Months: []MonthAccrual{}}, nil
	}

	result := PeriodResult{Months: []MonthAccrual{}}
	for _, month := range bounded.Months() {
		days := generic.WorkedDays(bounded.Start, bounded.End, month.Year, month.Month)
		if days == 0 {
			continue
		}
		m := e.accrue(span.Salary(), days, month, e.Rules, e.Tables.ForYear(month.Year))
		result.Months = append(result.Months, m)
		result.Totals.add(m)
	}
	return result, nil
}

// AccrueMonth computes a single month under explicit parameters. Worked days
// are bounded by the span's admission and termination within that month
// only. A month with no worked days returns a zero accrual.
func AccrueMonth(span EmploymentSpan, month generic.Month, params ParametersSnapshot) (MonthAccrual, error) {
	if err := span.Validate(); err != nil {
		return MonthAccrual{}, err
	}
	days := generic.WorkedDays(span.Admission, span.End(month.Last()), month.Year, month.Month)
	if days == 0 {
		return MonthAccrual{Month: month}, nil
	}
	return Engine{}.accrue(span.Salary(), days, month, params.Proration, params.Rates), nil
}

func (e Engine) accrue(salary float64, days int, month generic.Month, rules ProrationRules, rates TaxYear) MonthAccrual {
	value := salary
	if days < month.Days() {
		value = ProrateOver(salary, days, rules.CommercialMonthDays)
	}

	m := MonthAccrual{
		Month:      month,
		DaysWorked: days,
		Salary:     value,
	}
	m.FlatContribution = value * rates.FlatRate
	m.PrimaryContribution = rates.Primary.Apply(value)
	m.IncomeTax = rates.IncomeTax.Apply(math.Max(0, value-m.PrimaryContribution))

	threshold := rules.Threshold()
	m.Eligible = IsEligible(days, threshold)
	m.ThirteenthSalary = FifteenDayAccrual(salary, days, threshold)
	m.Vacation = FifteenDayAccrual(salary, days, threshold)
	m.VacationBonus = VacationBonus(m.Vacation)
	m.FlatOnAccruals = m.ThirteenthSalary * rates.FlatRate
	return m
}
