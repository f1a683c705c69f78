package interest

import (
	"cloud.google.com/go/civil"

	"loan-ledger/internal/models"
)

// IsAccrualDue reports whether a new period has started since the last accrual.
// Monthly schedules are anchored to calendar months, so the first day of a new
// month is due even if the last accrual was the day before.
func IsAccrualDue(frequency models.AccrualFrequency, last *civil.Date, asOf civil.Date) bool {
	if last == nil {
		return true
	}

	switch frequency {
	case models.AccrualFrequencyDaily:
		return *last != asOf
	case models.AccrualFrequencyMonthly:
		return last.Year != asOf.Year || last.Month != asOf.Month
	}
	return false
}
