// Package interest holds the pure accrual math: the per-period calculator, the
// due-date oracle and the historical timeline generator. Nothing here touches
// storage, and nothing here returns an error: out-of-range input degrades to a
// zero amount or an empty timeline.
package interest

import (
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

var (
	hundred        = decimal.NewFromInt(100)
	daysPerYear    = decimal.NewFromInt(365)
	monthsPerYear  = decimal.NewFromInt(12)
	currencyPlaces = int32(2)
)

// CalculateAccrual returns one period's interest. Simple interest accrues on
// principal; compound interest accrues on the outstanding balance. The result is
// rounded half away from zero to cents and is never negative.
func CalculateAccrual(
	principal, ratePercent decimal.Decimal,
	interestType models.InterestType,
	frequency models.AccrualFrequency,
	outstandingBalance decimal.Decimal,
) decimal.Decimal {
	if !ratePercent.IsPositive() {
		return decimal.Zero
	}

	var base decimal.Decimal
	switch interestType {
	case models.InterestTypeSimple:
		base = principal
	case models.InterestTypeCompound:
		base = outstandingBalance
	default:
		return decimal.Zero
	}

	periods, ok := periodsPerYear(frequency)
	if !ok {
		return decimal.Zero
	}

	amount := base.Mul(ratePercent).Div(hundred.Mul(periods)).Round(currencyPlaces)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount
}

func periodsPerYear(frequency models.AccrualFrequency) (decimal.Decimal, bool) {
	switch frequency {
	case models.AccrualFrequencyDaily:
		return daysPerYear, true
	case models.AccrualFrequencyMonthly:
		return monthsPerYear, true
	}
	return decimal.Zero, false
}
