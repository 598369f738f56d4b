package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day with no time-of-day or timezone component
// =============================================================================

// Date is a calendar day. The underlying time is always midnight UTC so two
// Dates for the same day compare equal regardless of where they were parsed.
type Date struct {
	t time.Time
}

// DateFormat selects the textual layout accepted by ParseDate.
type DateFormat int

const (
	FormatAuto DateFormat = iota // DMY or ISO, detected from the text
	FormatDMY                    // DD/MM/YYYY
	FormatISO                    // YYYY-MM-DD
)

const (
	layoutDMY = "2/1/2006"
	layoutISO = "2006-01-02"
)

// NewDate normalizes the given components. Out-of-range values roll over the
// way time.Date does; use ParseDate when the input must be a real date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day of t, keeping t's own calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses DD/MM/YYYY or YYYY-MM-DD. Text that does not match the
// format, or that names a day the calendar does not have, fails with
// ErrInvalidDate.
func ParseDate(text string, format DateFormat) (Date, error) {
	s := strings.TrimSpace(text)
	if format == FormatAuto {
		format = FormatISO
		if strings.Contains(s, "/") {
			format = FormatDMY
		}
	}

	var layout string
	switch format {
	case FormatDMY:
		layout = layoutDMY
	case FormatISO:
		layout = layoutISO
		if len(s) != len(layoutISO) {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
		}
	default:
		return Date{}, fmt.Errorf("%w: unknown format %d", ErrInvalidDate, format)
	}

	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	if format == FormatDMY && t.Year() < 1000 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(text string) Date {
	d, err := ParseDate(text, FormatAuto)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int { return d.t.Day() }
func (d Date) IsZero() bool { return d.t.IsZero() }
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(layoutISO)
}

// FormatDMY renders the date as DD/MM/YYYY.
func (d Date) FormatDMY() string { return d.t.Format("02/01/2006") }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b), FormatAuto)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CALENDAR ARITHMETIC
// =============================================================================

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func FirstOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func LastOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// DaysBetween is the signed number of days from `from` to `to`.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// InclusiveDayCount counts both endpoints: end - start + 1.
func InclusiveDayCount(start, end Date) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s before %s", ErrInvalidPeriod, end, start)
	}
	return DaysBetween(start, end) + 1, nil
}

// WorkedDays is the number of days of the calendar month covered by the
// employment range [start, end]. Zero when the range misses the month.
func WorkedDays(start, end Date, year int, month time.Month) int {
	overlap, ok := Intersect(Period{Start: start, End: end}, MonthOf(year, month).Period())
	if !ok {
		return 0
	}
	return overlap.Days()
}
