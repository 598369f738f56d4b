package burden_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/burden"
	"github.com/warp/labor-engine/generic"
	"github.com/warp/labor-engine/payroll"
)

func span(admission, termination string) payroll.EmploymentSpan {
	s := payroll.EmploymentSpan{Admission: generic.MustParseDate(admission), MonthlySalary: 300000}
	if termination != "" {
		d := generic.MustParseDate(termination)
		s.Termination = &d
	}
	return s
}

func window(from, to string) generic.Period {
	return generic.Period{Start: generic.MustParseDate(from), End: generic.MustParseDate(to)}
}

func TestParseSector(t *testing.T) {
	s, err := burden.ParseSector("")
	require.NoError(t, err)
	assert.Equal(t, burden.Commerce, s)

	s, err = burden.ParseSector(" Industry ")
	require.NoError(t, err)
	assert.Equal(t, burden.Industry, s)

	_, err = burden.ParseSector("mining")
	assert.ErrorIs(t, err, burden.ErrUnknownSector)
}

func TestCompute_FullMonthCommerce(t *testing.T) {
	// GIVEN a commerce employee working all of January
	// WHEN the burden is computed for January
	r, err := burden.Compute("e1", span("2025-01-01", ""), burden.Commerce, window("2025-01-01", "2025-01-31"))
	require.NoError(t, err)

	// THEN charges use the full proportion and provisions a full twelfth
	require.Len(t, r.Months, 1)
	m := r.Months[0]
	assert.Equal(t, 31, m.DaysWorked)
	assert.Equal(t, 1.0, m.Proportion)
	assert.Equal(t, generic.Cents(60000), m.Charges.SocialSecurity)
	assert.Equal(t, generic.Cents(24000), m.Charges.Fund)
	assert.Equal(t, generic.Cents(17400), m.Charges.ThirdParty)
	assert.Equal(t, generic.Cents(6000), m.Charges.WorkAccident)
	assert.Equal(t, generic.Cents(25000), m.Provisions.ThirteenthSalary)
	assert.Equal(t, generic.Cents(25000), m.Provisions.Vacation)
	assert.Equal(t, generic.Cents(8333), m.Provisions.VacationBonus)
	assert.Equal(t, generic.Cents(4667), m.Provisions.FundOnProvisions)
	assert.Equal(t, generic.Cents(170400), m.Total)

	assert.Equal(t, generic.Cents(0), r.FundPenalty40)
	assert.Equal(t, m.Total, r.Total)
}

func TestCompute_ContinuousBelowFifteenDays(t *testing.T) {
	// GIVEN an employee admitted for the last 10 days of January
	r, err := burden.Compute("e1", span("2025-01-22", ""), burden.Commerce, window("2025-01-01", "2025-01-31"))
	require.NoError(t, err)

	// THEN provisions still accrue 10/30 of a twelfth: no 15-day cliff here
	require.Len(t, r.Months, 1)
	m := r.Months[0]
	assert.Equal(t, 10, m.DaysWorked)
	assert.Equal(t, generic.Cents(20000), m.Charges.SocialSecurity)
	assert.Equal(t, generic.Cents(8000), m.Charges.Fund)
	assert.Equal(t, generic.Cents(5800), m.Charges.ThirdParty)
	assert.Equal(t, generic.Cents(2000), m.Charges.WorkAccident)
	assert.Equal(t, generic.Cents(8333), m.Provisions.ThirteenthSalary)
	assert.Equal(t, generic.Cents(8333), m.Provisions.Vacation)
	assert.Equal(t, generic.Cents(2778), m.Provisions.VacationBonus)
	assert.Equal(t, generic.Cents(1556), m.Provisions.FundOnProvisions)
}

func TestCompute_SectorsDiffer(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")
	industry, err := burden.Compute("e1", span("2025-01-01", ""), burden.Industry, w)
	require.NoError(t, err)
	services, err := burden.Compute("e1", span("2025-01-01", ""), burden.Services, w)
	require.NoError(t, err)

	assert.Equal(t, generic.Cents(11400), industry.Charges.ThirdParty)
	assert.Equal(t, generic.Cents(9000), industry.Charges.WorkAccident)
	assert.Equal(t, generic.Cents(14400), services.Charges.ThirdParty)
	assert.Equal(t, generic.Cents(3000), services.Charges.WorkAccident)
}

func TestCompute_TerminationPenalty(t *testing.T) {
	r, err := burden.Compute("e1", span("2025-01-01", "2025-02-14"), burden.Commerce, window("2025-01-01", "2025-12-31"))
	require.NoError(t, err)

	require.Len(t, r.Months, 2)
	assert.Equal(t, 14, r.Months[1].DaysWorked)
	assert.Equal(t, generic.Cents(35200), r.Charges.Fund)
	assert.Equal(t, generic.Cents(6845), r.Provisions.FundOnProvisions)
	assert.Equal(t, generic.Cents(16818), r.FundPenalty40)
	assert.Equal(t, r.Charges.Total()+r.Provisions.Total()+r.FundPenalty40, r.Total)
}

func TestCompute_TerminationOutsideWindowHasNoPenalty(t *testing.T) {
	r, err := burden.Compute("e1", span("2025-01-01", "2025-02-14"), burden.Commerce, window("2025-01-01", "2025-01-31"))
	require.NoError(t, err)
	assert.Equal(t, generic.Cents(0), r.FundPenalty40)
}

func TestCompute_Errors(t *testing.T) {
	_, err := burden.Compute("e1", span("2025-01-01", ""), burden.Sector("mining"), window("2025-01-01", "2025-01-31"))
	assert.ErrorIs(t, err, burden.ErrUnknownSector)

	_, err = burden.Compute("e1", span("2025-02-01", "2025-01-01"), burden.Commerce, window("2025-01-01", "2025-01-31"))
	assert.ErrorIs(t, err, generic.ErrInvalidSpan)

	_, err = burden.Compute("e1", span("2025-01-01", ""), burden.Commerce, window("2025-02-01", "2025-01-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestCompute_NoOverlap(t *testing.T) {
	r, err := burden.Compute("e1", span("2026-01-01", ""), burden.Commerce, window("2025-01-01", "2025-12-31"))
	require.NoError(t, err)
	assert.Empty(t, r.Months)
	assert.Equal(t, generic.Cents(0), r.Total)
}

func TestAggregateByItem(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")
	a, err := burden.Compute("e1", span("2025-01-01", ""), burden.Commerce, w)
	require.NoError(t, err)
	b, err := burden.Compute("e2", span("2025-01-01", ""), burden.Services, w)
	require.NoError(t, err)

	items := burden.AggregateByItem([]burden.Report{a, b})
	require.Len(t, items, 9)
	assert.Equal(t, burden.ItemSocialSecurity, items[0].Item)
	assert.Equal(t, generic.Cents(120000), items[0].Amount)
	assert.Equal(t, burden.ItemThirdParty, items[2].Item)
	assert.Equal(t, generic.Cents(17400+14400), items[2].Amount)
	assert.Equal(t, burden.ItemFundPenalty40, items[8].Item)
	assert.Equal(t, generic.Cents(0), items[8].Amount)

	var sum generic.Cents
	for _, it := range items {
		sum += it.Amount
	}
	assert.Equal(t, a.Total+b.Total, sum)

	assert.Len(t, burden.AggregateByItem(nil), 9)
}
