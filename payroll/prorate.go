package payroll

// CommercialMonthDays is the fixed month length used for proration,
// whatever the calendar month's real length.
const CommercialMonthDays = 30

// Prorate is the salary for daysWorked days of a 30-day commercial month:
// (monthlySalary / 30) * min(daysWorked, 30).
func Prorate(monthlySalary float64, daysWorked int) float64 {
	return ProrateOver(monthlySalary, daysWorked, CommercialMonthDays)
}

// ProrateOver is Prorate with an explicit commercial month length. A
// non-positive length falls back to CommercialMonthDays.
func ProrateOver(monthlySalary float64, daysWorked, commercialDays int) float64 {
	if commercialDays <= 0 {
		commercialDays = CommercialMonthDays
	}
	if daysWorked <= 0 {
		return 0
	}
	if daysWorked >= commercialDays {
		return monthlySalary
	}
	return monthlySalary / float64(commercialDays) * float64(daysWorked)
}
