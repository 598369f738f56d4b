package generic

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is the inclusive range [Start, End].
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Valid reports whether End is not before Start.
func (p Period) Valid() bool { return p.End.AfterOrEqual(p.Start) }

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days is the inclusive day count. An invalid period has zero days.
func (p Period) Days() int {
	n, err := InclusiveDayCount(p.Start, p.End)
	if err != nil {
		return 0
	}
	return n
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Intersect returns the overlap of a and b. ok is false when a ends before b
// starts or b ends before a starts.
func Intersect(a, b Period) (Period, bool) {
	if a.End.Before(b.Start) || b.End.Before(a.Start) {
		return Period{}, false
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Period{Start: start, End: end}, true
}

// Months lists every calendar month the period touches, in order.
func (p Period) Months() []Month {
	if !p.Valid() {
		return nil
	}
	var months []Month
	last := MonthOf(p.End.Year(), p.End.Month())
	for m := MonthOf(p.Start.Year(), p.Start.Month()); !m.After(last); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// =============================================================================
// MONTH - A calendar month, written YYYY-MM
// =============================================================================

// Month identifies one calendar month (the payroll competence).
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(year int, month time.Month) Month { return Month{Year: year, Month: month} }

// ParseMonth parses "YYYY-MM".
func ParseMonth(text string) (Month, error) {
	if len(text) != 7 || text[4] != '-' {
		return Month{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, text)
	}
	for i, c := range text {
		if i != 4 && (c < '0' || c > '9') {
			return Month{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, text)
		}
	}
	y, _ := strconv.Atoi(text[:4])
	m, _ := strconv.Atoi(text[5:])
	if y < 1 || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("%w: month out of range in %q", ErrInvalidPeriod, text)
	}
	return MonthOf(y, time.Month(m)), nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Month) First() Date    { return FirstOfMonth(m.Year, m.Month) }
func (m Month) Last() Date     { return LastOfMonth(m.Year, m.Month) }
func (m Month) Days() int      { return DaysInMonth(m.Year, m.Month) }
func (m Month) Period() Period { return Period{Start: m.First(), End: m.Last()} }

func (m Month) Next() Month {
	next := m.First().AddMonths(1)
	return MonthOf(next.Year(), next.Month())
}

func (m Month) After(o Month) bool {
	return m.Year > o.Year || (m.Year == o.Year && m.Month > o.Month)
}
