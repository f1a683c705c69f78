package interest

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

// Tranche is one funding event on a loan's disbursement timeline.
type Tranche struct {
	Amount decimal.Decimal
	Date   civil.Date
}

// Accrual is a generated period charge, not yet persisted.
type Accrual struct {
	Date   civil.Date
	Amount decimal.Decimal
	Type   models.InterestType
}

// GenerateHistoricalAccruals replays the accrual schedule from loanDate up to,
// but not including, asOf, as if the daily sweep had run on every period.
//
// Without tranches the principal is flat. With tranches the principal at a date
// is the sum of tranches dated on or before it, so later funding only affects
// periods on or after its own date.
func GenerateHistoricalAccruals(
	principal decimal.Decimal,
	terms models.Terms,
	loanDate civil.Date,
	tranches []Tranche,
	asOf civil.Date,
) []Accrual {
	if !terms.InterestRate.IsPositive() || !loanDate.Before(asOf) {
		return nil
	}
	if !terms.AccrualFrequency.Valid() || !terms.InterestType.Valid() {
		return nil
	}

	timeline := sortedTranches(tranches)
	principalAt := func(d civil.Date) decimal.Decimal {
		if len(timeline) == 0 {
			return principal
		}
		sum := decimal.Zero
		for _, t := range timeline {
			if t.Date.After(d) {
				break
			}
			sum = sum.Add(t.Amount)
		}
		return sum
	}

	compound := terms.InterestType == models.InterestTypeCompound
	running := principalAt(loanDate)
	foldedThrough := loanDate

	var out []Accrual
	for cursor := firstPeriod(terms.AccrualFrequency, loanDate); cursor.Before(asOf); cursor = nextPeriod(terms.AccrualFrequency, cursor) {
		if compound && cursor.After(foldedThrough) {
			for _, t := range timeline {
				if t.Date.After(foldedThrough) && !t.Date.After(cursor) {
					running = running.Add(t.Amount)
				}
			}
			foldedThrough = cursor
		}

		amount := CalculateAccrual(
			principalAt(cursor),
			terms.InterestRate,
			terms.InterestType,
			terms.AccrualFrequency,
			running,
		)
		if !amount.IsPositive() {
			continue
		}

		out = append(out, Accrual{Date: cursor, Amount: amount, Type: terms.InterestType})
		if compound {
			running = running.Add(amount)
		}
	}
	return out
}

func sortedTranches(tranches []Tranche) []Tranche {
	if len(tranches) == 0 {
		return nil
	}
	out := make([]Tranche, len(tranches))
	copy(out, tranches)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// firstPeriod never returns a date before the loan started: a monthly loan
// opened mid-month first accrues on the 1st of the following month.
func firstPeriod(frequency models.AccrualFrequency, loanDate civil.Date) civil.Date {
	if frequency == models.AccrualFrequencyDaily {
		return loanDate
	}
	first := civil.Date{Year: loanDate.Year, Month: loanDate.Month, Day: 1}
	if first.Before(loanDate) {
		return addMonths(first, 1)
	}
	return first
}

func nextPeriod(frequency models.AccrualFrequency, cursor civil.Date) civil.Date {
	if frequency == models.AccrualFrequencyDaily {
		return cursor.AddDays(1)
	}
	return addMonths(cursor, 1)
}

// addMonths is only called with first-of-month dates, so AddDate never
// overflows into the following month.
func addMonths(d civil.Date, n int) civil.Date {
	return civil.DateOf(d.In(time.UTC).AddDate(0, n, 0))
}
