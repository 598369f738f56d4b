package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/generic"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		text    string
		want    generic.Month
		wantErr bool
	}{
		{"2025-01", generic.MonthOf(2025, time.January), false},
		{"2025-12", generic.MonthOf(2025, time.December), false},
		{"2025-13", generic.Month{}, true},
		{"2025-00", generic.Month{}, true},
		{"2025-1", generic.Month{}, true},
		{"2025/01", generic.Month{}, true},
		{"0000-01", generic.Month{}, true},
		{"20a5-01", generic.Month{}, true},
		{"", generic.Month{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := generic.ParseMonth(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())
		})
	}
}

func TestMonth_Bounds(t *testing.T) {
	m := generic.MonthOf(2024, time.February)
	assert.Equal(t, "2024-02-01", m.First().String())
	assert.Equal(t, "2024-02-29", m.Last().String())
	assert.Equal(t, 29, m.Days())
	assert.Equal(t, 29, m.Period().Days())

	// December rolls into the next year
	assert.Equal(t, "2026-01", generic.MonthOf(2025, time.December).Next().String())
	assert.True(t, generic.MonthOf(2026, time.January).After(generic.MonthOf(2025, time.December)))
	assert.False(t, generic.MonthOf(2025, time.March).After(generic.MonthOf(2025, time.March)))
}

func TestIntersect(t *testing.T) {
	p := func(a, b string) generic.Period {
		return generic.Period{Start: generic.MustParseDate(a), End: generic.MustParseDate(b)}
	}

	tests := []struct {
		name   string
		a, b   generic.Period
		want   generic.Period
		wantOK bool
	}{
		{"overlap", p("2025-01-10", "2025-01-20"), p("2025-01-15", "2025-01-31"), p("2025-01-15", "2025-01-20"), true},
		{"contained", p("2025-01-01", "2025-01-31"), p("2025-01-05", "2025-01-06"), p("2025-01-05", "2025-01-06"), true},
		{"touching", p("2025-01-01", "2025-01-15"), p("2025-01-15", "2025-01-31"), p("2025-01-15", "2025-01-15"), true},
		{"disjoint", p("2025-01-01", "2025-01-10"), p("2025-01-11", "2025-01-31"), generic.Period{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := generic.Intersect(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Months(t *testing.T) {
	p := generic.Period{Start: generic.MustParseDate("2025-11-15"), End: generic.MustParseDate("2026-02-01")}

	var got []string
	for _, m := range p.Months() {
		got = append(got, m.String())
	}
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, got)

	inverted := generic.Period{Start: p.End, End: p.Start}
	assert.False(t, inverted.Valid())
	assert.Nil(t, inverted.Months())
	assert.Equal(t, 0, inverted.Days())
}
