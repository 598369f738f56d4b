package payroll

import (
	"fmt"
	"math"
)

// =============================================================================
// PROGRESSIVE TAX TABLE
// =============================================================================

// Bracket is one tier of a progressive table. UpTo is the inclusive upper
// bound; nil means unbounded. Deduct is a flat amount subtracted once from
// the final tax when the base falls in this bracket.
type Bracket struct {
	UpTo   *float64 `json:"up_to" yaml:"up_to"`
	Rate   float64  `json:"rate" yaml:"rate"`
	Deduct float64  `json:"deduct,omitempty" yaml:"deduct,omitempty"`
}

// UpTo is a helper for building bounded brackets in literals.
func UpTo(v float64) *float64 { return &v }

// Table is a bracket list plus a standard deduction taken off the base
// before the brackets are walked (income-tax style tables).
type Table struct {
	Brackets          []Bracket `json:"brackets" yaml:"brackets"`
	StandardDeduction float64   `json:"standard_deduction,omitempty" yaml:"standard_deduction,omitempty"`
}

// Apply evaluates the table on base after the standard deduction.
func (t Table) Apply(base float64) float64 {
	return ApplyProgressive(math.Max(0, base-t.StandardDeduction), t.Brackets)
}

// Validate reports the first structural problem in the table. A bounded
// final bracket is accepted and acts as a contribution ceiling.
func (t Table) Validate() error {
	if t.StandardDeduction < 0 || !finite(t.StandardDeduction) {
		return fmt.Errorf("standard deduction must be a non-negative number")
	}
	return validateBrackets(t.Brackets)
}

// ApplyProgressive walks brackets in ascending order, taxing each slice of
// the base at the bracket's marginal rate. An empty or malformed table, or
// a base <= 0, yields 0. The result is never negative.
func ApplyProgressive(base float64, brackets []Bracket) float64 {
	if len(brackets) == 0 || base <= 0 || !finite(base) {
		return 0
	}
	if validateBrackets(brackets) != nil {
		return 0
	}

	tax := 0.0
	remaining := base
	previous := 0.0
	for _, b := range brackets {
		upper := math.Inf(1)
		if b.UpTo != nil {
			upper = *b.UpTo
		}
		slice := math.Max(0, math.Min(remaining, upper-previous))
		tax += slice * b.Rate
		remaining -= slice
		previous = upper
		if remaining <= 0 {
			break
		}
	}

	if d := containing(base, brackets).Deduct; d > 0 {
		tax -= d
	}
	return math.Max(0, tax)
}

// containing returns the first bracket whose bound covers base, or the last
// bracket when base exceeds every bound.
func containing(base float64, brackets []Bracket) Bracket {
	for _, b := range brackets {
		if b.UpTo == nil || base <= *b.UpTo {
			return b
		}
	}
	return brackets[len(brackets)-1]
}

func validateBrackets(brackets []Bracket) error {
	previous := 0.0
	for i, b := range brackets {
		if !finite(b.Rate) || b.Rate < 0 || b.Rate > 1 {
			return fmt.Errorf("bracket %d: rate must be within [0, 1]", i)
		}
		if !finite(b.Deduct) || b.Deduct < 0 {
			return fmt.Errorf("bracket %d: deduct must be non-negative", i)
		}
		if b.UpTo == nil {
			if i != len(brackets)-1 {
				return fmt.Errorf("bracket %d: only the last bracket may be unbounded", i)
			}
			continue
		}
		if !finite(*b.UpTo) || *b.UpTo <= previous {
			return fmt.Errorf("bracket %d: upper bounds must be positive and strictly ascending", i)
		}
		previous = *b.UpTo
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
