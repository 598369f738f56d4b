/*
Package burden computes the employer-burden view of an employee: what the
employer pays on top of salary, month by month.

PURPOSE:
  A management report, not a payroll. Charges are prorated continuously by
  min(1, days/30) and benefit provisions use payroll.ContinuousAccrual,
  so a 10-day month still provisions 10/30 of a twelfth. The monthly
  payroll calculation (payroll.Calculator) uses the 15-day cliff instead;
  the two figures are expected to differ.

CHARGES (per sector, on the monthly salary):
  social_security  employer social-security contribution
  fund             severance fund deposit
  third_party      third-party entity levies
  work_accident    work-accident insurance

PROVISIONS:
  thirteenth_salary, vacation, vacation_bonus, and fund_on_provisions (the
  sector's fund rate applied to the other three).

SEE ALSO:
  - payroll/policies.go: ContinuousAccrual vs. FifteenDayAccrual
  - api/handlers.go: GET /api/employees/{id}/burden
*/
package burden

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

// =============================================================================
// SECTORS AND CHARGE RATES
// =============================================================================

type Sector string

const (
	Commerce Sector = "commerce"
	Industry Sector = "industry"
	Services Sector = "services"
)

// DefaultSector is used when an employee has none recorded.
const DefaultSector = Commerce

// ErrUnknownSector is returned for a sector with no charge rates.
var ErrUnknownSector = errors.New("unknown sector")

// ChargeRates are the employer charge rates of one sector.
type ChargeRates struct {
	SocialSecurity float64 `json:"social_security"`
	Fund           float64 `json:"fund"`
	ThirdParty     float64 `json:"third_party"`
	WorkAccident   float64 `json:"work_accident"`
}

var sectorRates = map[Sector]ChargeRates{
	Commerce: {SocialSecurity: 0.20, Fund: 0.08, ThirdParty: 0.058, WorkAccident: 0.02},
	Industry: {SocialSecurity: 0.20, Fund: 0.08, ThirdParty: 0.038, WorkAccident: 0.03},
	Services: {SocialSecurity: 0.20, Fund: 0.08, ThirdParty: 0.048, WorkAccident: 0.01},
}

// ParseSector normalizes s. Empty means DefaultSector.
func ParseSector(s string) (Sector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSector, nil
	}
	if _, ok := sectorRates[Sector(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSector, s)
	}
	return Sector(s), nil
}

// RatesFor returns the charge rates of a sector.
func RatesFor(s Sector) (ChargeRates, error) {
	r, ok := sectorRates[s]
	if !ok {
		return ChargeRates{}, fmt.Errorf("%w: %q", ErrUnknownSector, s)
	}
	return r, nil
}

// Sectors lists the known sectors.
func Sectors() []Sector { return []Sector{Commerce, Industry, Services} }

// =============================================================================
// REPORT
// =============================================================================

// Charges are the employer charges of a month, in cents.
type Charges struct {
	SocialSecurity generic.Cents `json:"social_security_cents"`
	Fund           generic.Cents `json:"fund_cents"`
	ThirdParty     generic.Cents `json:"third_party_cents"`
	WorkAccident   generic.Cents `json:"work_accident_cents"`
}

func (c Charges) Total() generic.Cents {
	return c.SocialSecurity + c.Fund + c.ThirdParty + c.WorkAccident
}

func (c *Charges) add(o Charges) {
	c.SocialSecurity += o.SocialSecurity
	c.Fund += o.Fund
	c.ThirdParty += o.ThirdParty
	c.WorkAccident += o.WorkAccident
}

// Provisions are the benefit provisions of a month, in cents.
type Provisions struct {
	ThirteenthSalary generic.Cents `json:"thirteenth_salary_cents"`
	Vacation         generic.Cents `json:"vacation_cents"`
	VacationBonus    generic.Cents `json:"vacation_bonus_cents"`
	FundOnProvisions generic.Cents `json:"fund_on_provisions_cents"`
}

func (p Provisions) Total() generic.Cents {
	return p.ThirteenthSalary + p.Vacation + p.VacationBonus + p.FundOnProvisions
}

func (p *Provisions) add(o Provisions) {
	p.ThirteenthSalary += o.ThirteenthSalary
	p.Vacation += o.Vacation
	p.VacationBonus += o.VacationBonus
	p.FundOnProvisions += o.FundOnProvisions
}

// Month is one month of the report.
type Month struct {
	Month      generic.Month `json:"month"`
	DaysWorked int           `json:"days_worked"`
	Proportion float64       `json:"proportion"`
	Charges    Charges       `json:"charges"`
	Provisions Provisions    `json:"provisions"`
	Total      generic.Cents `json:"total_cents"`
}

// Report is the burden of one employee over a window.
type Report struct {
	EmployeeID string         `json:"employee_id"`
	Sector     Sector         `json:"sector"`
	Rates      ChargeRates    `json:"rates"`
	Window     generic.Period `json:"window"`
	Months     []Month        `json:"months"`
	Charges    Charges        `json:"charges"`
	Provisions Provisions     `json:"provisions"`

	// FundPenalty40 is 40% of every fund amount in the report, present only
	// when the termination falls inside the window.
	FundPenalty40 generic.Cents `json:"fund_penalty_40_cents"`
	Total         generic.Cents `json:"total_cents"`
}

// FundPenaltyRate is the termination penalty on accumulated fund deposits.
const FundPenaltyRate = 0.4

// Compute builds the burden report for an employee over window. Months
// outside the employment span are skipped. An open span ends at
// window.End.
func Compute(employeeID string, span payroll.EmploymentSpan, sector Sector, window generic.Period) (Report, error) {
	rates, err := RatesFor(sector)
	if err != nil {
		return Report{}, err
	}
	if err := span.Validate(); err != nil {
		return Report{}, err
	}
	if !window.Valid() {
		return Report{}, generic.ErrInvalidPeriod
	}

	report := Report{
		EmployeeID: employeeID,
		Sector:     sector,
		Rates:      rates,
		Window:     window,
		Months:     []Month{},
	}

	employed := generic.Period{Start: span.Admission, End: span.End(window.End)}
	bounded, ok := generic.Intersect(employed, window)
	if !ok {
		return report, nil
	}

	salary := span.Salary()
	for _, m := range bounded.Months() {
		days := generic.WorkedDays(bounded.Start, bounded.End, m.Year, m.Month)
		if days == 0 {
			continue
		}
		month := computeMonth(salary, days, m, rates)
		report.Months = append(report.Months, month)
		report.Charges.add(month.Charges)
		report.Provisions.add(month.Provisions)
	}

	if span.Termination != nil && window.Contains(*span.Termination) {
		fund := generic.FromCents(report.Charges.Fund + report.Provisions.FundOnProvisions)
		report.FundPenalty40 = generic.ToCents(fund * FundPenaltyRate)
	}
	report.Total = report.Charges.Total() + report.Provisions.Total() + report.FundPenalty40
	return report, nil
}

func computeMonth(salary float64, days int, m generic.Month, rates ChargeRates) Month {
	proportion := math.Min(1, float64(days)/payroll.CommercialMonthDays)

	charges := Charges{
		SocialSecurity: generic.ToCents(salary * rates.SocialSecurity * proportion),
		Fund:           generic.ToCents(salary * rates.Fund * proportion),
		ThirdParty:     generic.ToCents(salary * rates.ThirdParty * proportion),
		WorkAccident:   generic.ToCents(salary * rates.WorkAccident * proportion),
	}

	thirteenth := payroll.ContinuousAccrual(salary, days)
	vacation := payroll.ContinuousAccrual(salary, days)
	bonus := payroll.VacationBonus(vacation)
	provisions := Provisions{
		ThirteenthSalary: generic.ToCents(thirteenth),
		Vacation:         generic.ToCents(vacation),
		VacationBonus:    generic.ToCents(bonus),
		FundOnProvisions: generic.ToCents((thirteenth + vacation + bonus) * rates.Fund),
	}

	return Month{
		Month:      m,
		DaysWorked: days,
		Proportion: proportion,
		Charges:    charges,
		Provisions: provisions,
		Total:      charges.Total() + provisions.Total(),
	}
}
