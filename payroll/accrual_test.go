package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.Date { return generic.MustParseDate(s) }

func datePtr(s string) *generic.Date {
	d := date(s)
	return &d
}

func month(s string) generic.Month {
	m, err := generic.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func span(admission string, termination string) payroll.EmploymentSpan {
	s := payroll.EmploymentSpan{Admission: date(admission), MonthlySalary: 300000}
	if termination != "" {
		s.Termination = datePtr(termination)
	}
	return s
}

func params2025() payroll.ParametersSnapshot {
	return payroll.BuildParameters(payroll.DefaultTaxTables(), nil, 2025, "UTC", nil)
}

// =============================================================================
// SINGLE MONTH
// =============================================================================

func TestAccrueMonth_FullMonth(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2025-01-01", ""), month("2025-01"), params2025())
	require.NoError(t, err)

	assert.Equal(t, 31, m.DaysWorked)
	assert.True(t, m.Eligible)
	assert.InDelta(t, 3000, m.Salary, 1e-9)
	assert.InDelta(t, 240, m.FlatContribution, 1e-9)
	assert.InDelta(t, 253.4136, m.PrimaryContribution, 1e-6)
	assert.InDelta(t, 23.83398, m.IncomeTax, 1e-6)
	assert.InDelta(t, 250, m.ThirteenthSalary, 1e-9)
	assert.InDelta(t, 250, m.Vacation, 1e-9)
	assert.InDelta(t, 250.0/3, m.VacationBonus, 1e-9)
	assert.InDelta(t, 20, m.FlatOnAccruals, 1e-9)
}

func TestAccrueMonth_AdmittedMidMonth(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2025-01-15", ""), month("2025-01"), params2025())
	require.NoError(t, err)

	assert.Equal(t, 17, m.DaysWorked)
	assert.InDelta(t, 1700, m.Salary, 1e-9)
	assert.True(t, m.Eligible, "17 >= 15")
	assert.InDelta(t, 250, m.ThirteenthSalary, 1e-9)
	assert.InDelta(t, 130.23, m.PrimaryContribution, 1e-6)
	assert.Equal(t, 0.0, m.IncomeTax, "below the exempt bracket")
}

func TestAccrueMonth_ShortContract(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2025-02-10", "2025-02-14"), month("2025-02"), params2025())
	require.NoError(t, err)

	assert.Equal(t, 5, m.DaysWorked)
	assert.InDelta(t, 500, m.Salary, 1e-9)
	assert.False(t, m.Eligible)
	assert.Equal(t, 0.0, m.ThirteenthSalary)
	assert.Equal(t, 0.0, m.Vacation)
	assert.Equal(t, 0.0, m.VacationBonus)
}

func TestAccrueMonth_EligibilityBoundary(t *testing.T) {
	fourteen, err := payroll.AccrueMonth(span("2025-01-18", ""), month("2025-01"), params2025())
	require.NoError(t, err)
	assert.Equal(t, 14, fourteen.DaysWorked)
	assert.False(t, fourteen.Eligible)
	assert.Equal(t, 0.0, fourteen.ThirteenthSalary)

	fifteen, err := payroll.AccrueMonth(span("2025-01-17", ""), month("2025-01"), params2025())
	require.NoError(t, err)
	assert.Equal(t, 15, fifteen.DaysWorked)
	assert.True(t, fifteen.Eligible)
	assert.InDelta(t, 250, fifteen.ThirteenthSalary, 1e-9)
}

func TestAccrueMonth_FebruaryFullMonthIsFullSalary(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2024-01-01", ""), month("2025-02"), params2025())
	require.NoError(t, err)
	assert.Equal(t, 28, m.DaysWorked)
	assert.InDelta(t, 3000, m.Salary, 1e-9)
}

func TestAccrueMonth_OutsideEmployment(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2025-03-01", ""), month("2025-01"), params2025())
	require.NoError(t, err)
	assert.Equal(t, 0, m.DaysWorked)
	assert.Equal(t, 0.0, m.Salary)
	assert.False(t, m.Eligible)
}

func TestAccrueMonth_InvalidSpan(t *testing.T) {
	_, err := payroll.AccrueMonth(span("2025-02-10", "2025-02-01"), month("2025-02"), params2025())
	assert.ErrorIs(t, err, generic.ErrInvalidSpan)
}

func TestAccrueMonth_FifteenDayRuleDisabled(t *testing.T) {
	p := params2025()
	p.Proration.FifteenDayRule = false
	m, err := payroll.AccrueMonth(span("2025-02-10", "2025-02-14"), month("2025-02"), p)
	require.NoError(t, err)
	assert.True(t, m.Eligible)
	assert.InDelta(t, 250, m.ThirteenthSalary, 1e-9)
}

// =============================================================================
// PERIOD ENGINE
// =============================================================================

func TestEngineRun_AcrossMonths(t *testing.T) {
	engine := payroll.NewEngine(payroll.DefaultTaxTables())
	window := generic.Period{Start: date("2025-01-01"), End: date("2025-03-31")}

	result, err := engine.Run(span("2025-01-15", ""), window)
	require.NoError(t, err)
	require.Len(t, result.Months, 3)

	assert.Equal(t, 17, result.Months[0].DaysWorked)
	assert.Equal(t, 28, result.Months[1].DaysWorked)
	assert.Equal(t, 31, result.Months[2].DaysWorked)

	assert.InDelta(t, 7700, result.Totals.Salary, 1e-9)
	assert.Equal(t, 3, result.Totals.EligibleMonths)
	assert.InDelta(t, 750, result.Totals.ThirteenthSalary, 1e-9)
	assert.InDelta(t, result.Totals.Gross-result.Totals.Deductions, result.Totals.Net, 1e-9)
}

func TestEngineRun_Terminated(t *testing.T) {
	engine := payroll.NewEngine(payroll.DefaultTaxTables())
	window := generic.Period{Start: date("2025-01-01"), End: date("2025-12-31")}

	result, err := engine.Run(span("2025-02-10", "2025-02-14"), window)
	require.NoError(t, err)
	require.Len(t, result.Months, 1)
	assert.Equal(t, 5, result.Months[0].DaysWorked)
	assert.Equal(t, 0, result.Totals.EligibleMonths)
	assert.InDelta(t, 500, result.Totals.Salary, 1e-9)
}

func TestEngineRun_NoOverlap(t *testing.T) {
	engine := payroll.NewEngine(payroll.DefaultTaxTables())
	window := generic.Period{Start: date("2024-01-01"), End: date("2024-12-31")}

	result, err := engine.Run(span("2025-01-01", ""), window)
	require.NoError(t, err)
	assert.Empty(t, result.Months)
	assert.Equal(t, 0.0, result.Totals.Gross)
}

func TestEngineRun_InvalidWindow(t *testing.T) {
	engine := payroll.NewEngine(payroll.DefaultTaxTables())
	_, err := engine.Run(span("2025-01-01", ""), generic.Period{Start: date("2025-02-01"), End: date("2025-01-01")})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// ROUNDING INTO A RECORD
// =============================================================================

func TestRoundResults_FullMonth(t *testing.T) {
	m, err := payroll.AccrueMonth(span("2025-01-01", ""), month("2025-01"), params2025())
	require.NoError(t, err)

	r := payroll.RoundResults(m)
	assert.Equal(t, generic.Cents(300000), r.ProratedSalary)
	assert.Equal(t, generic.Cents(24000), r.FlatContribution)
	assert.Equal(t, generic.Cents(25341), r.PrimaryContribution)
	assert.Equal(t, generic.Cents(2383), r.IncomeTax)
	assert.Equal(t, generic.Cents(25000), r.ThirteenthSalary)
	assert.Equal(t, generic.Cents(25000), r.Vacation)
	assert.Equal(t, generic.Cents(8333), r.VacationBonus)
	assert.Equal(t, generic.Cents(0), r.Termination.NoticeIndemnity)
	assert.Equal(t, generic.Cents(9600), r.Termination.FlatPenalty40)

	assert.Equal(t, generic.Cents(358333), r.Totals.Gross)
	assert.Equal(t, generic.Cents(27724), r.Totals.Deductions)
	assert.Equal(t, generic.Cents(330609), r.Totals.Net)
}

func TestRoundTotals(t *testing.T) {
	engine := payroll.NewEngine(payroll.DefaultTaxTables())
	window := generic.Period{Start: date("2025-01-01"), End: date("2025-03-31")}

	// GIVEN three months of accruals, the first one partial
	result, err := engine.Run(span("2025-01-15", ""), window)
	require.NoError(t, err)

	// WHEN the totals are rounded
	got := payroll.RoundTotals(result.Totals)

	// THEN every figure is whole cents of the unrounded sum
	assert.Equal(t, generic.Cents(770000), got.Salary)
	assert.Equal(t, generic.Cents(75000), got.ThirteenthSalary)
	assert.Equal(t, generic.Cents(75000), got.Vacation)
	assert.Equal(t, generic.Cents(25000), got.VacationBonus)
	assert.Equal(t, generic.Cents(945000), got.Gross)
	assert.Equal(t, generic.ToCents(result.Totals.Deductions), got.Deductions)
	assert.Equal(t, generic.ToCents(result.Totals.Net), got.Net)
	assert.Equal(t, 3, got.EligibleMonths)
}

func TestRoundTotals_HalfUpOnce(t *testing.T) {
	got := payroll.RoundTotals(payroll.PeriodTotals{Salary: 10.005, IncomeTax: 1.234})
	assert.Equal(t, generic.Cents(1001), got.Salary)
	assert.Equal(t, generic.Cents(123), got.IncomeTax)
}
