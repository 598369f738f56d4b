package payroll

import (
	"fmt"
)

// Override is an explicit partial override accepted at the request boundary.
// Each non-nil field replaces the matching section of the parameters
// snapshot; nothing is merged field-by-field inside a section.
type Override struct {
	FlatRate  *float64        `json:"flat_rate,omitempty"`
	Primary   *Table          `json:"primary,omitempty"`
	IncomeTax *Table          `json:"income_tax,omitempty"`
	Proration *ProrationRules `json:"proration,omitempty"`
}

// Empty reports whether the override changes nothing.
func (o *Override) Empty() bool {
	return o == nil || (o.FlatRate == nil && o.Primary == nil && o.IncomeTax == nil && o.Proration == nil)
}

// Validate returns field-level problems keyed by JSON path. A nil map means
// the override is valid.
func (o *Override) Validate() map[string]string {
	if o == nil {
		return nil
	}
	fields := map[string]string{}
	if o.FlatRate != nil && (!finite(*o.FlatRate) || *o.FlatRate < 0 || *o.FlatRate > 1) {
		fields["override.flat_rate"] = "must be within [0, 1]"
	}
	if o.Primary != nil {
		if err := o.Primary.Validate(); err != nil {
			fields["override.primary"] = err.Error()
		}
	}
	if o.IncomeTax != nil {
		if err := o.IncomeTax.Validate(); err != nil {
			fields["override.income_tax"] = err.Error()
		}
	}
	if o.Proration != nil {
		if o.Proration.CommercialMonthDays < 1 || o.Proration.CommercialMonthDays > 31 {
			fields["override.proration.commercial_month_days"] = fmt.Sprintf("must be within [1, 31], got %d", o.Proration.CommercialMonthDays)
		}
		if o.Proration.EligibilityThreshold < 0 || o.Proration.EligibilityThreshold > 31 {
			fields["override.proration.eligibility_threshold"] = "must be within [0, 31]"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Apply returns p with the override's sections swapped in. Bracket slices
// are copied so the snapshot never aliases request memory.
func (o *Override) Apply(p ParametersSnapshot) ParametersSnapshot {
	if o.Empty() {
		return p
	}
	if o.FlatRate != nil {
		p.Rates.FlatRate = *o.FlatRate
	}
	if o.Primary != nil {
		p.Rates.Primary = o.Primary.clone()
	}
	if o.IncomeTax != nil {
		p.Rates.IncomeTax = o.IncomeTax.clone()
	}
	if o.Proration != nil {
		p.Proration = *o.Proration
	}
	return p
}

func (t Table) clone() Table {
	out := Table{StandardDeduction: t.StandardDeduction}
	if t.Brackets != nil {
		out.Brackets = make([]Bracket, len(t.Brackets))
		for i, b := range t.Brackets {
			out.Brackets[i] = Bracket{Rate: b.Rate, Deduct: b.Deduct}
			if b.UpTo != nil {
				out.Brackets[i].UpTo = UpTo(*b.UpTo)
			}
		}
	}
	return out
}
