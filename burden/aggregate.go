package burden

import "github.com/warp/labor-engine/generic"

// Item names used by AggregateByItem, in report order.
const (
	ItemSocialSecurity   = "social_security"
	ItemFund             = "fund"
	ItemThirdParty       = "third_party"
	ItemWorkAccident     = "work_accident"
	ItemThirteenthSalary = "thirteenth_salary"
	ItemVacation         = "vacation"
	ItemVacationBonus    = "vacation_bonus"
	ItemFundOnProvisions = "fund_on_provisions"
	ItemFundPenalty40    = "fund_penalty_40"
)

// ItemTotal is one pay item summed across reports.
type ItemTotal struct {
	Item   string        `json:"item"`
	Amount generic.Cents `json:"amount_cents"`
}

// AggregateByItem sums every pay item across reports. Items always appear in
// the same order, including zero totals, so charts stay stable.
func AggregateByItem(reports []Report) []ItemTotal {
	var charges Charges
	var provisions Provisions
	var penalty generic.Cents
	for _, r := range reports {
		charges.add(r.Charges)
		provisions.add(r.Provisions)
		penalty += r.FundPenalty40
	}
	return []ItemTotal{
		{ItemSocialSecurity, charges.SocialSecurity},
		{ItemFund, charges.Fund},
		{ItemThirdParty, charges.ThirdParty},
		{ItemWorkAccident, charges.WorkAccident},
		{ItemThirteenthSalary, provisions.ThirteenthSalary},
		{ItemVacation, provisions.Vacation},
		{ItemVacationBonus, provisions.VacationBonus},
		{ItemFundOnProvisions, provisions.FundOnProvisions},
		{ItemFundPenalty40, penalty},
	}
}
