package core

import "github.com/shopspring/decimal"

// contributionDivisors maps a period to the number of months it covers.
// Periods not listed fall back to fallbackDivisor, which keeps the historic
// behavior of treating every non-monthly record as yearly.
var contributionDivisors = map[Period]int64{
	Monthly: 1,
	Yearly:  12,
}

const fallbackDivisor = 12

// divisionPrecision bounds the digits kept by price/12 before summing.
const divisionPrecision = 16

func monthlyShare(price float64, p Period) decimal.Decimal {
	if !finite(price) {
		return decimal.Zero
	}
	div, ok := contributionDivisors[p]
	if !ok {
		div = fallbackDivisor
	}
	d := decimal.NewFromFloat(price)
	if div == 1 {
		return d
	}
	return d.DivRound(decimal.NewFromInt(div), divisionPrecision)
}

// MonthlyContribution returns what one subscription adds to the monthly total.
func MonthlyContribution(s Subscription) float64 {
	v, _ := monthlyShare(s.Price, s.Period).Float64()
	return v
}

// MonthlyTotal sums the monthly share of every subscription. Shares are
// added as decimals so the result does not depend on iteration order.
func MonthlyTotal(subs []Subscription) float64 {
	total := decimal.Zero
	for _, s := range subs {
		total = total.Add(monthlyShare(s.Price, s.Period))
	}
	v, _ := total.Float64()
	return v
}
