package payroll

import "math"

// =============================================================================
// ACCRUAL ELIGIBILITY POLICIES
// =============================================================================
//
// Two accrual policies exist for the same benefits (13th salary, vacation,
// vacation bonus) and produce different figures:
//
//   FifteenDayAccrual  - payroll view. A month earns a full 1/12 when at
//                        least `threshold` days were worked, nothing otherwise.
//   ContinuousAccrual  - employer-burden view. A month earns 1/12 scaled by
//                        min(1, days/30), with no cliff.
//
// Which one is authoritative is an open product question, so they stay as
// separate functions and callers pick one explicitly.

// DefaultEligibilityThreshold is the minimum number of worked days for a
// month to count under the 15-day rule.
const DefaultEligibilityThreshold = 15

// ProrationRules is the proration section of a parameter snapshot.
type ProrationRules struct {
	CommercialMonthDays  int  `json:"commercial_month_days" yaml:"commercial_month_days"`
	FifteenDayRule       bool `json:"fifteen_day_rule" yaml:"fifteen_day_rule"`
	EligibilityThreshold int  `json:"eligibility_threshold,omitempty" yaml:"eligibility_threshold,omitempty"`
}

// DefaultProrationRules: 30-day commercial month, 15-day rule on.
func DefaultProrationRules() ProrationRules {
	return ProrationRules{
		CommercialMonthDays:  CommercialMonthDays,
		FifteenDayRule:       true,
		EligibilityThreshold: DefaultEligibilityThreshold,
	}
}

// Threshold is the minimum worked days for eligibility. With the 15-day
// rule disabled any worked day counts.
func (r ProrationRules) Threshold() int {
	if !r.FifteenDayRule {
		return 1
	}
	if r.EligibilityThreshold <= 0 {
		return DefaultEligibilityThreshold
	}
	return r.EligibilityThreshold
}

// IsEligible applies the cliff: daysWorked >= threshold.
func IsEligible(daysWorked, threshold int) bool {
	return daysWorked > 0 && daysWorked >= threshold
}

// FifteenDayAccrual is one month's proportional accrual under the cliff rule:
// monthlySalary/12 when eligible, 0 otherwise.
func FifteenDayAccrual(monthlySalary float64, daysWorked, threshold int) float64 {
	if !IsEligible(daysWorked, threshold) {
		return 0
	}
	return monthlySalary / 12
}

// ContinuousAccrual is one month's proportional accrual with no cliff:
// monthlySalary/12 * min(1, daysWorked/30).
func ContinuousAccrual(monthlySalary float64, daysWorked int) float64 {
	if daysWorked <= 0 {
		return 0
	}
	proportion := math.Min(1, float64(daysWorked)/CommercialMonthDays)
	return monthlySalary / 12 * proportion
}

// VacationBonus is the one-third bonus on a vacation accrual.
func VacationBonus(vacation float64) float64 { return vacation / 3 }
