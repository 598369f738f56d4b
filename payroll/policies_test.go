package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// PRORATION
// =============================================================================

func TestProrate(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{0, 0},
		{-3, 0},
		{5, 500},
		{17, 1700},
		{29, 2900},
		{30, 3000},
		{31, 3000}, // capped at the commercial month
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, payroll.Prorate(3000, tt.days), 1e-9, "days=%d", tt.days)
	}
}

func TestProrateOver_FallsBackToCommercialMonth(t *testing.T) {
	assert.InDelta(t, 1000, payroll.ProrateOver(3000, 10, 0), 1e-9)
	assert.InDelta(t, 1500, payroll.ProrateOver(3000, 10, 20), 1e-9)
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

func TestFifteenDayAccrual_Cliff(t *testing.T) {
	assert.Equal(t, 0.0, payroll.FifteenDayAccrual(3000, 14, 15))
	assert.InDelta(t, 250, payroll.FifteenDayAccrual(3000, 15, 15), 1e-9)
	assert.InDelta(t, 250, payroll.FifteenDayAccrual(3000, 31, 15), 1e-9)
	assert.Equal(t, 0.0, payroll.FifteenDayAccrual(3000, 0, 0), "zero days never earn")
}

func TestContinuousAccrual(t *testing.T) {
	assert.InDelta(t, 250.0*14/30, payroll.ContinuousAccrual(3000, 14), 1e-9)
	assert.InDelta(t, 250, payroll.ContinuousAccrual(3000, 30), 1e-9)
	assert.InDelta(t, 250, payroll.ContinuousAccrual(3000, 31), 1e-9)
	assert.Equal(t, 0.0, payroll.ContinuousAccrual(3000, 0))
}

// The two policies disagree below the threshold; that is expected.
func TestPolicies_DifferBelowThreshold(t *testing.T) {
	cliff := payroll.FifteenDayAccrual(3000, 10, payroll.DefaultEligibilityThreshold)
	continuous := payroll.ContinuousAccrual(3000, 10)
	assert.Equal(t, 0.0, cliff)
	assert.Greater(t, continuous, 0.0)
}

func TestVacationBonus(t *testing.T) {
	assert.InDelta(t, 100, payroll.VacationBonus(300), 1e-9)
}

func TestProrationRules_Threshold(t *testing.T) {
	assert.Equal(t, 15, payroll.DefaultProrationRules().Threshold())
	assert.Equal(t, 1, payroll.ProrationRules{CommercialMonthDays: 30}.Threshold())
	assert.Equal(t, 15, payroll.ProrationRules{FifteenDayRule: true}.Threshold())
	assert.Equal(t, 10, payroll.ProrationRules{FifteenDayRule: true, EligibilityThreshold: 10}.Threshold())
}
