// Package ledger applies mutations to the loan ledger and keeps the automatic
// accrual timeline consistent with each loan's terms and funding history.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	commonerrors "loan-ledger/internal/common/errors"
	"loan-ledger/internal/common/events"
	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/metrics"
	"loan-ledger/internal/interest"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/models"
)

const (
	tracerName              = "loan-ledger/ledger"
	initialDisbursementNote = "Initial disbursement"
	accessTokenBytes        = 32
)

// Clock returns the current instant. "Today" is its calendar date in the
// service's location.
type Clock func() time.Time

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

type Service struct {
	store     store.Store
	log       logger.Logger
	clock     Clock
	loc       *time.Location
	publisher events.Publisher
	validator *validator.Validate
	tracer    trace.Tracer
}

func NewService(st store.Store, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		log:       log,
		clock:     time.Now,
		loc:       time.UTC,
		publisher: events.Nop{},
		validator: newValidator(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the configured timezone.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.clock().In(s.loc))
}

// ==========================
// Loans
// ==========================

// CreateLoan stores a loan with its initial disbursement and, for an
// interest-bearing loan, the automatic accruals from the loan date up to today.
func (s *Service) CreateLoan(ctx context.Context, cmd CreateLoanCommand) (*models.Loan, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "ledger.CreateLoan")
	defer span.End()

	now := s.clock()
	loan := &models.Loan{
		ID:               uuid.New().String(),
		Principal:        cmd.Principal,
		InterestRate:     cmd.InterestRate,
		InterestType:     cmd.InterestType,
		AccrualFrequency: cmd.AccrualFrequency,
		LoanDate:         cmd.LoanDate,
		DueDate:          cmd.DueDate,
		Status:           models.LoanStatusActive,
		Notes:            cmd.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	span.SetAttributes(attribute.String("loan.id", loan.ID))

	var written int
	err := s.store.InTx(ctx, func(tx store.Store) error {
		creditorID, err := s.resolveCreditor(ctx, tx, cmd, now)
		if err != nil {
			return err
		}
		loan.CreditorID = creditorID

		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}

		if err := tx.AddDisbursement(ctx, &models.Disbursement{
			ID:               uuid.New().String(),
			LoanID:           loan.ID,
			Amount:           loan.Principal,
			DisbursementDate: loan.LoanDate,
			Notes:            initialDisbursementNote,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		// a new loan has a single tranche, so the principal is flat
		written, err = s.regenerate(ctx, tx, loan, loan.Principal, loan.LoanDate, nil)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "Failed to create loan", err, map[string]interface{}{"loanId": loan.ID})
	}

	metrics.AccrualsWritten.WithLabelValues(metrics.SourceHistorical).Add(float64(written))
	s.log.Info("Loan created", map[string]interface{}{
		"loanId":          loan.ID,
		"creditorId":      loan.CreditorID,
		"principal":       loan.Principal.String(),
		"accrualsWritten": written,
	})
	s.publish(ctx, events.LoanCreated, loan.ID, map[string]interface{}{
		"creditorId":      loan.CreditorID,
		"principal":       loan.Principal.StringFixed(2),
		"loanDate":        loan.LoanDate.String(),
		"accrualsWritten": written,
	})
	return loan, nil
}

func (s *Service) resolveCreditor(ctx context.Context, tx store.Store, cmd CreateLoanCommand, now time.Time) (string, error) {
	if cmd.CreditorID != "" {
		c, err := tx.GetCreditor(ctx, cmd.CreditorID)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	}

	token, err := newAccessToken()
	if err != nil {
		return "", err
	}
	c := &models.Creditor{
		ID:          uuid.New().String(),
		Name:        cmd.CreditorName,
		Email:       cmd.CreditorEmail,
		AccessToken: token,
		CreatedAt:   now,
	}
	if err := tx.CreateCreditor(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// RecordDisbursement adds a funding tranche. Principal and loan date are
// recomputed from all tranches and the automatic timeline is rebuilt, since a
// backdated tranche changes every period after it.
func (s *Service) RecordDisbursement(ctx context.Context, cmd RecordDisbursementCommand) (*models.Loan, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "ledger.RecordDisbursement", attribute.String("loan.id", cmd.LoanID))
	defer span.End()

	var (
		loan    *models.Loan
		written int
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		if loan, err = tx.GetLoan(ctx, cmd.LoanID); err != nil {
			return err
		}

		now := s.clock()
		if err := tx.AddDisbursement(ctx, &models.Disbursement{
			ID:               uuid.New().String(),
			LoanID:           loan.ID,
			Amount:           cmd.Amount,
			DisbursementDate: cmd.DisbursementDate,
			Notes:            cmd.Notes,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		disbursements, err := tx.ListDisbursements(ctx, loan.ID)
		if err != nil {
			return err
		}
		loan.Principal, loan.LoanDate = fundingOf(disbursements)
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		if _, err := tx.DeleteAutomaticAccruals(ctx, loan.ID); err != nil {
			return commonerrors.NewAccrualRegenerationFailedError(loan.ID, err)
		}
		written, err = s.regenerate(ctx, tx, loan, loan.Principal, loan.LoanDate, tranchesOf(disbursements))
		return err
	})
	if err != nil {
		return nil, s.fail(span, "Failed to record disbursement", err, map[string]interface{}{"loanId": cmd.LoanID})
	}

	metrics.AccrualsWritten.WithLabelValues(metrics.SourceHistorical).Add(float64(written))
	s.log.Info("Disbursement recorded", map[string]interface{}{
		"loanId":          loan.ID,
		"amount":          cmd.Amount.String(),
		"principal":       loan.Principal.String(),
		"accrualsWritten": written,
	})
	s.publish(ctx, events.DisbursementRecorded, loan.ID, map[string]interface{}{
		"amount":           cmd.Amount.StringFixed(2),
		"disbursementDate": cmd.DisbursementDate.String(),
		"principal":        loan.Principal.StringFixed(2),
	})
	return loan, nil
}

// EditLoanTerms always saves the due date and notes. The automatic timeline
// is rebuilt only when the interest terms actually changed.
func (s *Service) EditLoanTerms(ctx context.Context, cmd EditLoanTermsCommand) (*EditResult, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "ledger.EditLoanTerms", attribute.String("loan.id", cmd.LoanID))
	defer span.End()

	result := &EditResult{}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		loan, err := tx.GetLoan(ctx, cmd.LoanID)
		if err != nil {
			return err
		}

		previous := loan.Terms()
		if cmd.PreviousTerms != nil {
			previous = *cmd.PreviousTerms
		}
		next := cmd.terms()
		result.TermsChanged = !previous.Equal(next)

		loan.InterestRate = next.InterestRate
		loan.InterestType = next.InterestType
		loan.AccrualFrequency = next.AccrualFrequency
		loan.DueDate = cmd.DueDate
		loan.Notes = cmd.Notes
		loan.UpdatedAt = s.clock()
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		result.Loan = loan

		if !result.TermsChanged {
			return nil
		}

		if result.AccrualsDeleted, err = tx.DeleteAutomaticAccruals(ctx, loan.ID); err != nil {
			return commonerrors.NewAccrualRegenerationFailedError(loan.ID, err)
		}

		disbursements, err := tx.ListDisbursements(ctx, loan.ID)
		if err != nil {
			return err
		}
		if len(disbursements) == 0 {
			return nil
		}
		principal, loanDate := fundingOf(disbursements)
		result.AccrualsWritten, err = s.regenerate(ctx, tx, loan, principal, loanDate, tranchesOf(disbursements))
		return err
	})
	if err != nil {
		return nil, s.fail(span, "Failed to edit loan terms", err, map[string]interface{}{"loanId": cmd.LoanID})
	}

	metrics.AccrualsWritten.WithLabelValues(metrics.SourceHistorical).Add(float64(result.AccrualsWritten))
	s.log.Info("Loan terms edited", map[string]interface{}{
		"loanId":          cmd.LoanID,
		"termsChanged":    result.TermsChanged,
		"accrualsDeleted": result.AccrualsDeleted,
		"accrualsWritten": result.AccrualsWritten,
	})
	s.publish(ctx, events.LoanTermsEdited, cmd.LoanID, map[string]interface{}{
		"termsChanged":     result.TermsChanged,
		"interestRate":     cmd.InterestRate.String(),
		"interestType":     string(cmd.InterestType),
		"accrualFrequency": string(cmd.AccrualFrequency),
	})
	return result, nil
}

func (s *Service) ChangeLoanStatus(ctx context.Context, loanID string, status models.LoanStatus) (*models.Loan, error) {
	if loanID == "" || !status.Valid() {
		return nil, fmt.Errorf("%w: loan id %q, status %q", models.ErrInvalidInput, loanID, status)
	}

	ctx, span := s.startSpan(ctx, "ledger.ChangeLoanStatus", attribute.String("loan.id", loanID))
	defer span.End()

	var (
		loan     *models.Loan
		previous models.LoanStatus
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		if loan, err = tx.GetLoan(ctx, loanID); err != nil {
			return err
		}
		previous = loan.Status
		loan.Status = status
		loan.UpdatedAt = s.clock()
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, s.fail(span, "Failed to change loan status", err, map[string]interface{}{"loanId": loanID})
	}

	s.log.Info("Loan status changed", map[string]interface{}{
		"loanId": loanID,
		"from":   string(previous),
		"to":     string(status),
	})
	s.publish(ctx, events.LoanStatusChanged, loanID, map[string]interface{}{
		"from": string(previous),
		"to":   string(status),
	})
	return loan, nil
}

// DeleteLoan removes the loan together with its accruals, payments and
// disbursements.
func (s *Service) DeleteLoan(ctx context.Context, loanID string) error {
	if loanID == "" {
		return fmt.Errorf("%w: loan id is required", models.ErrInvalidInput)
	}

	ctx, span := s.startSpan(ctx, "ledger.DeleteLoan", attribute.String("loan.id", loanID))
	defer span.End()

	err := s.store.InTx(ctx, func(tx store.Store) error {
		return tx.DeleteLoan(ctx, loanID)
	})
	if err != nil {
		return s.fail(span, "Failed to delete loan", err, map[string]interface{}{"loanId": loanID})
	}

	s.log.Info("Loan deleted", map[string]interface{}{"loanId": loanID})
	s.publish(ctx, events.LoanDeleted, loanID, nil)
	return nil
}

// ==========================
// Payments & manual accruals
// ==========================

func (s *Service) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (*models.Payment, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "ledger.RecordPayment", attribute.String("loan.id", cmd.LoanID))
	defer span.End()

	payment := &models.Payment{
		ID:          uuid.New().String(),
		LoanID:      cmd.LoanID,
		Amount:      cmd.Amount,
		PaymentDate: cmd.PaymentDate,
		Notes:       cmd.Notes,
		CreatedAt:   s.clock(),
	}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetLoan(ctx, cmd.LoanID); err != nil {
			return err
		}
		return tx.AddPayment(ctx, payment)
	})
	if err != nil {
		return nil, s.fail(span, "Failed to record payment", err, map[string]interface{}{"loanId": cmd.LoanID})
	}

	s.log.Info("Payment recorded", map[string]interface{}{
		"loanId":    cmd.LoanID,
		"paymentId": payment.ID,
		"amount":    cmd.Amount.String(),
	})
	s.publish(ctx, events.PaymentRecorded, cmd.LoanID, map[string]interface{}{
		"paymentId":   payment.ID,
		"amount":      cmd.Amount.StringFixed(2),
		"paymentDate": cmd.PaymentDate.String(),
	})
	return payment, nil
}

func (s *Service) DeletePayment(ctx context.Context, loanID, paymentID string) error {
	if loanID == "" || paymentID == "" {
		return fmt.Errorf("%w: loan id and payment id are required", models.ErrInvalidInput)
	}

	ctx, span := s.startSpan(ctx, "ledger.DeletePayment", attribute.String("loan.id", loanID))
	defer span.End()

	err := s.store.InTx(ctx, func(tx store.Store) error {
		return tx.DeletePayment(ctx, loanID, paymentID)
	})
	if err != nil {
		return s.fail(span, "Failed to delete payment", err, map[string]interface{}{"loanId": loanID, "paymentId": paymentID})
	}

	s.log.Info("Payment deleted", map[string]interface{}{"loanId": loanID, "paymentId": paymentID})
	s.publish(ctx, events.PaymentDeleted, loanID, map[string]interface{}{"paymentId": paymentID})
	return nil
}

// RecordManualAccrual adds an interest charge that regeneration never touches.
func (s *Service) RecordManualAccrual(ctx context.Context, cmd RecordManualAccrualCommand) (*models.InterestAccrual, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "ledger.RecordManualAccrual", attribute.String("loan.id", cmd.LoanID))
	defer span.End()

	var accrual models.InterestAccrual
	err := s.store.InTx(ctx, func(tx store.Store) error {
		loan, err := tx.GetLoan(ctx, cmd.LoanID)
		if err != nil {
			return err
		}
		accrual = models.InterestAccrual{
			ID:           uuid.New().String(),
			LoanID:       loan.ID,
			Amount:       cmd.Amount,
			AccrualDate:  cmd.AccrualDate,
			InterestType: loan.InterestType,
			IsManual:     true,
			CreatedAt:    s.clock(),
		}
		return tx.AddAccruals(ctx, []models.InterestAccrual{accrual})
	})
	if err != nil {
		return nil, s.fail(span, "Failed to record manual accrual", err, map[string]interface{}{"loanId": cmd.LoanID})
	}

	metrics.AccrualsWritten.WithLabelValues(metrics.SourceManual).Inc()
	s.log.Info("Manual accrual recorded", map[string]interface{}{
		"loanId":    cmd.LoanID,
		"accrualId": accrual.ID,
		"amount":    cmd.Amount.String(),
	})
	s.publish(ctx, events.ManualAccrualRecorded, cmd.LoanID, map[string]interface{}{
		"accrualId":   accrual.ID,
		"amount":      cmd.Amount.StringFixed(2),
		"accrualDate": cmd.AccrualDate.String(),
	})
	return &accrual, nil
}

// ==========================
// Creditors
// ==========================

// RegenerateAccessToken replaces the creditor's portal token. The previous
// token stops resolving as soon as the transaction commits.
func (s *Service) RegenerateAccessToken(ctx context.Context, creditorID string) (*models.Creditor, error) {
	if creditorID == "" {
		return nil, fmt.Errorf("%w: creditor id is required", models.ErrInvalidInput)
	}

	ctx, span := s.startSpan(ctx, "ledger.RegenerateAccessToken", attribute.String("creditor.id", creditorID))
	defer span.End()

	var creditor *models.Creditor
	err := s.store.InTx(ctx, func(tx store.Store) error {
		c, err := tx.GetCreditor(ctx, creditorID)
		if err != nil {
			return err
		}
		token, err := newAccessToken()
		if err != nil {
			return err
		}
		if err := tx.UpdateCreditorToken(ctx, c.ID, token); err != nil {
			return err
		}
		c.AccessToken = token
		creditor = c
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "Failed to regenerate access token", err, map[string]interface{}{"creditorId": creditorID})
	}

	s.log.Info("Access token regenerated", map[string]interface{}{"creditorId": creditorID})
	s.publish(ctx, events.AccessTokenRotated, "", map[string]interface{}{"creditorId": creditorID})
	return creditor, nil
}

// ==========================
// Reads
// ==========================

// LoanSummary returns a loan with its ledger rows and derived balances.
func (s *Service) LoanSummary(ctx context.Context, loanID string) (*models.LoanSummary, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, *loan, true)
}

// PortalSummary is the creditor's read-only view of all their loans, newest
// loan first, each with its payments newest first.
func (s *Service) PortalSummary(ctx context.Context, accessToken string) (*PortalView, error) {
	if accessToken == "" {
		return nil, models.ErrCreditorNotFound
	}
	creditor, err := s.store.GetCreditorByToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	loans, err := s.store.ListLoansByCreditor(ctx, creditor.ID)
	if err != nil {
		return nil, err
	}

	view := &PortalView{Creditor: *creditor, Loans: make([]models.LoanSummary, 0, len(loans)), TotalBalance: decimal.Zero}
	for _, loan := range loans {
		summary, err := s.summarize(ctx, loan, false)
		if err != nil {
			return nil, err
		}
		if summary.Payments, err = s.store.ListPayments(ctx, loan.ID); err != nil {
			return nil, err
		}
		sort.SliceStable(summary.Payments, func(i, j int) bool {
			return summary.Payments[j].PaymentDate.Before(summary.Payments[i].PaymentDate)
		})
		view.Loans = append(view.Loans, *summary)
		view.TotalBalance = view.TotalBalance.Add(summary.DisplayBalance)
	}
	return view, nil
}

func (s *Service) summarize(ctx context.Context, loan models.Loan, withRows bool) (*models.LoanSummary, error) {
	totalInterest, totalPaid, err := s.store.LoanTotals(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	outstanding := models.OutstandingBalance(loan.Principal, totalInterest, totalPaid)
	summary := &models.LoanSummary{
		Loan:               loan,
		TotalInterest:      totalInterest,
		TotalPaid:          totalPaid,
		OutstandingBalance: outstanding,
		DisplayBalance:     models.DisplayBalance(outstanding),
	}
	if !withRows {
		return summary, nil
	}

	if summary.Disbursements, err = s.store.ListDisbursements(ctx, loan.ID); err != nil {
		return nil, err
	}
	if summary.Payments, err = s.store.ListPayments(ctx, loan.ID); err != nil {
		return nil, err
	}
	if summary.Accruals, err = s.store.ListAccruals(ctx, loan.ID); err != nil {
		return nil, err
	}
	return summary, nil
}

// ==========================
// Helpers
// ==========================

// regenerate writes the automatic accruals for loan's current terms from
// loanDate up to, not including, today. Callers delete the old automatic rows
// first.
func (s *Service) regenerate(
	ctx context.Context,
	tx store.Store,
	loan *models.Loan,
	principal decimal.Decimal,
	loanDate civil.Date,
	tranches []interest.Tranche,
) (int, error) {
	generated := interest.GenerateHistoricalAccruals(principal, loan.Terms(), loanDate, tranches, s.Today())
	if len(generated) == 0 {
		return 0, nil
	}

	now := s.clock()
	rows := make([]models.InterestAccrual, 0, len(generated))
	for _, g := range generated {
		rows = append(rows, models.InterestAccrual{
			ID:           uuid.New().String(),
			LoanID:       loan.ID,
			Amount:       g.Amount,
			AccrualDate:  g.Date,
			InterestType: g.Type,
			CreatedAt:    now,
		})
	}
	if err := tx.AddAccruals(ctx, rows); err != nil {
		return 0, commonerrors.NewAccrualRegenerationFailedError(loan.ID, err)
	}
	return len(rows), nil
}

// fundingOf returns the sum and earliest date of a non-empty tranche list.
func fundingOf(disbursements []models.Disbursement) (decimal.Decimal, civil.Date) {
	total := decimal.Zero
	earliest := disbursements[0].DisbursementDate
	for _, d := range disbursements {
		total = total.Add(d.Amount)
		if d.DisbursementDate.Before(earliest) {
			earliest = d.DisbursementDate
		}
	}
	return total, earliest
}

func tranchesOf(disbursements []models.Disbursement) []interest.Tranche {
	out := make([]interest.Tranche, 0, len(disbursements))
	for _, d := range disbursements {
		out = append(out, interest.Tranche{Amount: d.Amount, Date: d.DisbursementDate})
	}
	return out
}

func newAccessToken() (string, error) {
	b := make([]byte, accessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) fail(span trace.Span, msg string, err error, fields map[string]interface{}) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.log.WithError(err).Error(msg, fields)
	return err
}

// publish is best effort: the mutation has already committed.
func (s *Service) publish(ctx context.Context, typ events.EventType, loanID string, payload map[string]interface{}) {
	ev := events.Event{
		ID:         uuid.New().String(),
		Type:       typ,
		LoanID:     loanID,
		OccurredAt: s.clock().UTC(),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish ledger event", map[string]interface{}{
			"eventType": string(typ),
			"loanId":    loanID,
			"error":     err.Error(),
		})
	}
}
