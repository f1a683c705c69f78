package ledger

import (
	"fmt"
	"reflect"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

type CreateLoanCommand struct {
	// CreditorID links an existing creditor. When empty a new creditor is
	// created from CreditorName and CreditorEmail.
	CreditorID       string                  `json:"creditorId"`
	CreditorName     string                  `json:"creditorName" validate:"required_without=CreditorID,max=200"`
	CreditorEmail    string                  `json:"creditorEmail" validate:"omitempty,email"`
	Principal        decimal.Decimal         `json:"principal" validate:"gt=0"`
	InterestRate     decimal.Decimal         `json:"interestRate" validate:"gte=0"`
	InterestType     models.InterestType     `json:"interestType" validate:"required,oneof=simple compound"`
	AccrualFrequency models.AccrualFrequency `json:"accrualFrequency" validate:"required,oneof=daily monthly"`
	LoanDate         civil.Date              `json:"loanDate" validate:"required"`
	DueDate          *civil.Date             `json:"dueDate"`
	Notes            string                  `json:"notes" validate:"max=2000"`
}

type RecordDisbursementCommand struct {
	LoanID           string          `json:"loanId" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	DisbursementDate civil.Date      `json:"disbursementDate" validate:"required"`
	Notes            string          `json:"notes" validate:"max=2000"`
}

// EditLoanTermsCommand replaces a loan's terms and descriptive fields.
// PreviousTerms, when set, is what the editor last saw; it decides whether the
// terms changed. Without it the stored terms are compared.
type EditLoanTermsCommand struct {
	LoanID           string                  `json:"loanId" validate:"required"`
	InterestRate     decimal.Decimal         `json:"interestRate" validate:"gte=0"`
	InterestType     models.InterestType     `json:"interestType" validate:"required,oneof=simple compound"`
	AccrualFrequency models.AccrualFrequency `json:"accrualFrequency" validate:"required,oneof=daily monthly"`
	DueDate          *civil.Date             `json:"dueDate"`
	Notes            string                  `json:"notes" validate:"max=2000"`
	PreviousTerms    *models.Terms           `json:"previousTerms"`
}

func (c EditLoanTermsCommand) terms() models.Terms {
	return models.Terms{
		InterestRate:     c.InterestRate,
		InterestType:     c.InterestType,
		AccrualFrequency: c.AccrualFrequency,
	}
}

type RecordPaymentCommand struct {
	LoanID      string          `json:"loanId" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentDate civil.Date      `json:"paymentDate" validate:"required"`
	Notes       string          `json:"notes" validate:"max=2000"`
}

type RecordManualAccrualCommand struct {
	LoanID      string          `json:"loanId" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	AccrualDate civil.Date      `json:"accrualDate" validate:"required"`
}

// EditResult reports what an edit did to the accrual timeline.
type EditResult struct {
	Loan            *models.Loan `json:"loan"`
	TermsChanged    bool         `json:"termsChanged"`
	AccrualsDeleted int64        `json:"accrualsDeleted"`
	AccrualsWritten int          `json:"accrualsWritten"`
}

// SweepResult summarises one daily sweep.
type SweepResult struct {
	Date         civil.Date `json:"date"`
	LoansAccrued int        `json:"loansAccrued"`
	LoansSkipped int        `json:"loansSkipped"`
	LoansFailed  int        `json:"loansFailed"`
}

// PortalView is the read-only view a creditor gets through their access token.
type PortalView struct {
	Creditor     models.Creditor      `json:"creditor"`
	Loans        []models.LoanSummary `json:"loans"`
	TotalBalance decimal.Decimal      `json:"totalBalance"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterCustomTypeFunc(dateValue, civil.Date{})
	return v
}

// decimalValue exposes decimals to numeric tags like gt and gte.
func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// dateValue maps the zero date to "" so required rejects it.
func dateValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(civil.Date)
	if !ok || d == (civil.Date{}) {
		return ""
	}
	return d.String()
}

func (s *Service) validate(cmd interface{}) error {
	if err := s.validator.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}
