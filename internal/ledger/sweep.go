package ledger

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"loan-ledger/internal/common/events"
	"loan-ledger/internal/common/metrics"
	"loan-ledger/internal/interest"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/models"
)

// RunDailySweep accrues one period of interest on every active interest-bearing
// loan that is due today. Running it twice on the same day accrues nothing the
// second time.
//
// A failure to list loans aborts the sweep. A failure on one loan is counted and
// the sweep moves on; those errors are joined into the returned error alongside
// a result that is still valid.
func (s *Service) RunDailySweep(ctx context.Context) (*SweepResult, error) {
	today := s.Today()

	ctx, span := s.startSpan(ctx, "ledger.RunDailySweep", attribute.String("sweep.date", today.String()))
	defer span.End()

	loans, err := s.store.ListActiveInterestLoans(ctx)
	if err != nil {
		return nil, s.fail(span, "Failed to list loans for sweep", err, map[string]interface{}{"date": today.String()})
	}

	result := &SweepResult{Date: today}
	var errs []error
	for _, loan := range loans {
		accrued, err := s.accrueLoan(ctx, loan, today)
		switch {
		case err != nil:
			result.LoansFailed++
			metrics.SweepLoans.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.log.WithError(err).Error("Failed to accrue interest", map[string]interface{}{"loanId": loan.ID})
			errs = append(errs, fmt.Errorf("loan %s: %w", loan.ID, err))
		case accrued:
			result.LoansAccrued++
			metrics.SweepLoans.WithLabelValues(metrics.OutcomeAccrued).Inc()
		default:
			result.LoansSkipped++
			metrics.SweepLoans.WithLabelValues(metrics.OutcomeSkipped).Inc()
		}
	}
	metrics.AccrualsWritten.WithLabelValues(metrics.SourceSweep).Add(float64(result.LoansAccrued))

	span.SetAttributes(
		attribute.Int("sweep.loans_accrued", result.LoansAccrued),
		attribute.Int("sweep.loans_failed", result.LoansFailed),
	)
	s.log.Info("Daily interest sweep completed", map[string]interface{}{
		"date":         today.String(),
		"loansVisited": len(loans),
		"loansAccrued": result.LoansAccrued,
		"loansSkipped": result.LoansSkipped,
		"loansFailed":  result.LoansFailed,
	})
	s.publish(ctx, events.SweepCompleted, "", map[string]interface{}{
		"date":         today.String(),
		"loansAccrued": result.LoansAccrued,
		"loansSkipped": result.LoansSkipped,
		"loansFailed":  result.LoansFailed,
	})

	return result, errors.Join(errs...)
}

// accrueLoan appends today's accrual for one loan if it is due and the loan
// still carries a positive balance.
func (s *Service) accrueLoan(ctx context.Context, loan models.Loan, today civil.Date) (bool, error) {
	accrued := false
	err := s.store.InTx(ctx, func(tx store.Store) error {
		last, err := tx.LastAccrualDate(ctx, loan.ID)
		if err != nil {
			return err
		}
		if !interest.IsAccrualDue(loan.AccrualFrequency, last, today) {
			return nil
		}

		totalInterest, totalPaid, err := tx.LoanTotals(ctx, loan.ID)
		if err != nil {
			return err
		}
		outstanding := models.OutstandingBalance(loan.Principal, totalInterest, totalPaid)
		if !outstanding.IsPositive() {
			return nil
		}

		amount := interest.CalculateAccrual(loan.Principal, loan.InterestRate, loan.InterestType, loan.AccrualFrequency, outstanding)
		if !amount.IsPositive() {
			return nil
		}

		if err := tx.AddAccruals(ctx, []models.InterestAccrual{{
			ID:           uuid.New().String(),
			LoanID:       loan.ID,
			Amount:       amount,
			AccrualDate:  today,
			InterestType: loan.InterestType,
			CreatedAt:    s.clock(),
		}}); err != nil {
			return err
		}
		accrued = true
		return nil
	})
	return accrued, err
}
