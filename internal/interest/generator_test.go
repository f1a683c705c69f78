package interest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/models"
)

func terms(rate string, typ models.InterestType, freq models.AccrualFrequency) models.Terms {
	return models.Terms{InterestRate: dec(rate), InterestType: typ, AccrualFrequency: freq}
}

func amounts(accruals []Accrual) []string {
	out := make([]string, 0, len(accruals))
	for _, a := range accruals {
		out = append(out, a.Amount.StringFixed(2))
	}
	return out
}

func dates(accruals []Accrual) []string {
	out := make([]string, 0, len(accruals))
	for _, a := range accruals {
		out = append(out, a.Date.String())
	}
	return out
}

// ==========================
// Timeline shape
// ==========================

func TestGenerate_MonthlySimpleBackdated(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1000"),
		terms("12", models.InterestTypeSimple, models.AccrualFrequencyMonthly),
		date("2024-01-01"), nil, date("2024-04-01"),
	)

	assert.Equal(t, []string{"2024-01-01", "2024-02-01", "2024-03-01"}, dates(got))
	assert.Equal(t, []string{"10.00", "10.00", "10.00"}, amounts(got))
	for _, a := range got {
		assert.Equal(t, models.InterestTypeSimple, a.Type)
	}
}

func TestGenerate_DailySimple(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1000"),
		terms("36.5", models.InterestTypeSimple, models.AccrualFrequencyDaily),
		date("2024-01-01"), nil, date("2024-01-04"),
	)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dates(got))
	assert.Equal(t, []string{"1.00", "1.00", "1.00"}, amounts(got))
}

func TestGenerate_MonthlyMidMonthStartsNextMonth(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1000"),
		terms("12", models.InterestTypeSimple, models.AccrualFrequencyMonthly),
		date("2024-01-15"), nil, date("2024-04-01"),
	)

	assert.Equal(t, []string{"2024-02-01", "2024-03-01"}, dates(got))
}

func TestGenerate_MonthlyAcrossYearEnd(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1200"),
		terms("12", models.InterestTypeSimple, models.AccrualFrequencyMonthly),
		date("2023-11-01"), nil, date("2024-01-02"),
	)

	assert.Equal(t, []string{"2023-11-01", "2023-12-01", "2024-01-01"}, dates(got))
	assert.Equal(t, []string{"12.00", "12.00", "12.00"}, amounts(got))
}

func TestGenerate_EmptyCases(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		loanDate string
		asOf     string
	}{
		{"zero rate", "0", "2024-01-01", "2024-06-01"},
		{"negative rate", "-1", "2024-01-01", "2024-06-01"},
		{"loan dated today", "12", "2024-06-01", "2024-06-01"},
		{"loan dated in the future", "12", "2024-07-01", "2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateHistoricalAccruals(
				dec("1000"),
				terms(tt.rate, models.InterestTypeSimple, models.AccrualFrequencyDaily),
				date(tt.loanDate), nil, date(tt.asOf),
			)
			assert.Empty(t, got)
		})
	}
}

func TestGenerate_AllDatesInWindow(t *testing.T) {
	loanDate := date("2024-01-20")
	asOf := date("2024-03-05")

	for _, freq := range []models.AccrualFrequency{models.AccrualFrequencyDaily, models.AccrualFrequencyMonthly} {
		got := GenerateHistoricalAccruals(dec("500"), terms("10", models.InterestTypeCompound, freq), loanDate, nil, asOf)
		require.NotEmpty(t, got, string(freq))
		for _, a := range got {
			assert.False(t, a.Date.Before(loanDate), "%s before loan date", a.Date)
			assert.True(t, a.Date.Before(asOf), "%s not before asOf", a.Date)
			assert.True(t, a.Amount.IsPositive())
		}
	}
}

// ==========================
// Compounding
// ==========================

func TestGenerate_MonthlyCompoundCapitalises(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1000"),
		terms("12", models.InterestTypeCompound, models.AccrualFrequencyMonthly),
		date("2024-01-01"), nil, date("2024-04-01"),
	)

	assert.Equal(t, []string{"10.00", "10.10", "10.20"}, amounts(got))
}

func TestGenerate_CompoundNonDecreasing(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("25000"),
		terms("9.5", models.InterestTypeCompound, models.AccrualFrequencyDaily),
		date("2023-01-01"), nil, date("2024-01-01"),
	)

	require.Len(t, got, 365)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Amount.LessThan(got[i-1].Amount), "row %d decreased", i)
	}
}

// ==========================
// Tranches
// ==========================

func TestGenerate_LaterTrancheLeavesEarlierRowsUnchanged(t *testing.T) {
	rate := terms("36.5", models.InterestTypeSimple, models.AccrualFrequencyDaily)
	first := Tranche{Amount: dec("1000"), Date: date("2024-01-01")}
	second := Tranche{Amount: dec("1000"), Date: date("2024-01-03")}

	before := GenerateHistoricalAccruals(dec("1000"), rate, first.Date, []Tranche{first}, date("2024-01-05"))
	after := GenerateHistoricalAccruals(dec("2000"), rate, first.Date, []Tranche{first, second}, date("2024-01-05"))

	assert.Equal(t, []string{"1.00", "1.00", "1.00", "1.00"}, amounts(before))
	assert.Equal(t, []string{"1.00", "1.00", "2.00", "2.00"}, amounts(after))
	assert.Equal(t, amounts(before)[:2], amounts(after)[:2])
}

func TestGenerate_TrancheAfterAsOfIgnored(t *testing.T) {
	rate := terms("12", models.InterestTypeCompound, models.AccrualFrequencyMonthly)
	tranches := []Tranche{
		{Amount: dec("1000"), Date: date("2024-01-01")},
		{Amount: dec("9000"), Date: date("2024-06-01")},
	}

	with := GenerateHistoricalAccruals(dec("10000"), rate, date("2024-01-01"), tranches, date("2024-04-01"))
	without := GenerateHistoricalAccruals(dec("1000"), rate, date("2024-01-01"), tranches[:1], date("2024-04-01"))

	assert.Equal(t, amounts(without), amounts(with))
}

func TestGenerate_CompoundFoldsTrancheOnce(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("2000"),
		terms("36.5", models.InterestTypeCompound, models.AccrualFrequencyDaily),
		date("2024-01-01"),
		[]Tranche{
			{Amount: dec("1000"), Date: date("2024-01-01")},
			{Amount: dec("1000"), Date: date("2024-01-02")},
		},
		date("2024-01-04"),
	)

	// 1000 -> 1001 -> 2001 after the second tranche -> 2003
	assert.Equal(t, []string{"1.00", "2.00", "2.00"}, amounts(got))
}

func TestGenerate_MonthlyCompoundFoldsTranchesBeforeFirstCursor(t *testing.T) {
	got := GenerateHistoricalAccruals(
		dec("1500"),
		terms("12", models.InterestTypeCompound, models.AccrualFrequencyMonthly),
		date("2024-01-15"),
		[]Tranche{
			{Amount: dec("1000"), Date: date("2024-01-15")},
			{Amount: dec("500"), Date: date("2024-01-20")},
		},
		date("2024-03-01"),
	)

	assert.Equal(t, []string{"2024-02-01"}, dates(got))
	assert.Equal(t, []string{"15.00"}, amounts(got))
}

func TestGenerate_DoesNotReorderInput(t *testing.T) {
	tranches := []Tranche{
		{Amount: dec("300"), Date: date("2024-02-10")},
		{Amount: dec("700"), Date: date("2024-01-01")},
	}

	GenerateHistoricalAccruals(
		dec("1000"),
		terms("5", models.InterestTypeSimple, models.AccrualFrequencyDaily),
		date("2024-01-01"), tranches, date("2024-03-01"),
	)

	assert.Equal(t, "2024-02-10", tranches[0].Date.String())
	assert.Equal(t, "2024-01-01", tranches[1].Date.String())
}

func TestGenerate_Deterministic(t *testing.T) {
	rate := terms("7.25", models.InterestTypeCompound, models.AccrualFrequencyDaily)
	tranches := []Tranche{
		{Amount: dec("4000"), Date: date("2024-01-01")},
		{Amount: dec("1250.50"), Date: date("2024-02-14")},
	}

	a := GenerateHistoricalAccruals(dec("5250.50"), rate, date("2024-01-01"), tranches, date("2024-05-01"))
	b := GenerateHistoricalAccruals(dec("5250.50"), rate, date("2024-01-01"), tranches, date("2024-05-01"))

	assert.Equal(t, dates(a), dates(b))
	assert.Equal(t, amounts(a), amounts(b))
}
