// Package events publishes ledger change notifications. Publishing is best
// effort: a failed publish never undoes the ledger mutation that caused it.
package events

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	LoanCreated           EventType = "loan.created"
	DisbursementRecorded  EventType = "loan.disbursement_recorded"
	LoanTermsEdited       EventType = "loan.terms_edited"
	LoanStatusChanged     EventType = "loan.status_changed"
	LoanDeleted           EventType = "loan.deleted"
	PaymentRecorded       EventType = "loan.payment_recorded"
	PaymentDeleted        EventType = "loan.payment_deleted"
	ManualAccrualRecorded EventType = "loan.manual_accrual_recorded"
	SweepCompleted        EventType = "interest.sweep_completed"
	AccessTokenRotated    EventType = "creditor.access_token_rotated"
)

type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	LoanID     string                 `json:"loanId,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
