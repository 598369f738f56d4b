package payroll

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// TAX PARAMETER SNAPSHOT - Year-indexed contribution tables
// =============================================================================

// TaxYear is one year's contribution parameters.
type TaxYear struct {
	FlatRate  float64 `json:"flat_rate" yaml:"flat_rate"`
	Primary   Table   `json:"primary" yaml:"primary"`
	IncomeTax Table   `json:"income_tax" yaml:"income_tax"`
}

// Validate checks the rate and both tables.
func (y TaxYear) Validate() error {
	if !finite(y.FlatRate) || y.FlatRate < 0 || y.FlatRate > 1 {
		return fmt.Errorf("flat_rate must be within [0, 1]")
	}
	if err := y.Primary.Validate(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	if err := y.IncomeTax.Validate(); err != nil {
		return fmt.Errorf("income_tax: %w", err)
	}
	return nil
}

// TaxParameterSnapshot is an explicit, immutable set of tax tables passed
// into every computation. There is no ambient "current year" state: the
// caller picks the snapshot, ForYear picks the year.
type TaxParameterSnapshot struct {
	Default TaxYear         `json:"default" yaml:"default"`
	Years   map[int]TaxYear `json:"years" yaml:"years"`
}

// ForYear returns the tables for year, or Default when the year is absent.
func (s TaxParameterSnapshot) ForYear(year int) TaxYear {
	if y, ok := s.Years[year]; ok {
		return y
	}
	return s.Default
}

// WithYears layers tenant-specific years over s without mutating it.
func (s TaxParameterSnapshot) WithYears(years map[int]TaxYear) TaxParameterSnapshot {
	merged := make(map[int]TaxYear, len(s.Years)+len(years))
	for k, v := range s.Years {
		merged[k] = v
	}
	for k, v := range years {
		merged[k] = v
	}
	return TaxParameterSnapshot{Default: s.Default, Years: merged}
}

// YearList returns the configured years in ascending order.
func (s TaxParameterSnapshot) YearList() []int {
	years := make([]int, 0, len(s.Years))
	for y := range s.Years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

//go:embed defaults.yaml
var defaultTablesYAML []byte

// DefaultTaxTables returns the built-in tables. Each call decodes a fresh
// copy so callers can never share mutable state.
func DefaultTaxTables() TaxParameterSnapshot {
	s, err := ParseTaxTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("payroll: embedded defaults.yaml is invalid: %v", err))
	}
	return s
}

// ParseTaxTables decodes and validates a YAML tax-table document.
func ParseTaxTables(data []byte) (TaxParameterSnapshot, error) {
	var s TaxParameterSnapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return TaxParameterSnapshot{}, fmt.Errorf("decode tax tables: %w", err)
	}
	if err := s.Default.Validate(); err != nil {
		return TaxParameterSnapshot{}, fmt.Errorf("default: %w", err)
	}
	for year, y := range s.Years {
		if err := y.Validate(); err != nil {
			return TaxParameterSnapshot{}, fmt.Errorf("year %d: %w", year, err)
		}
	}
	return s, nil
}

// LoadTaxTables reads a YAML tax-table file.
func LoadTaxTables(path string) (TaxParameterSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaxParameterSnapshot{}, fmt.Errorf("read tax tables: %w", err)
	}
	return ParseTaxTables(data)
}

// =============================================================================
// PARAMETERS SNAPSHOT - Everything a single calculation depends on
// =============================================================================

// RoundingHalfUp2 names the only rounding policy: half-up to 2 decimals.
const RoundingHalfUp2 = "half_up_2"

// ParametersSnapshot is the full parameter set of one calculation. It is
// persisted with the record and hashed into its fingerprint.
type ParametersSnapshot struct {
	Proration ProrationRules `json:"proration"`
	Rates     TaxYear        `json:"rates"`
	Timezone  string         `json:"timezone"`
	Rounding  string         `json:"rounding"`
}

// BuildParameters resolves the parameters for a year: tenant settings over
// built-in tables, then the request override over both.
func BuildParameters(tables TaxParameterSnapshot, settings *Settings, year int, timezone string, override *Override) ParametersSnapshot {
	rules := DefaultProrationRules()
	if settings != nil {
		tables = tables.WithYears(settings.Taxes)
		if settings.Proration != nil {
			rules = *settings.Proration
		}
	}
	p := ParametersSnapshot{
		Proration: rules,
		Rates:     tables.ForYear(year),
		Timezone:  timezone,
		Rounding:  RoundingHalfUp2,
	}
	return override.Apply(p)
}
