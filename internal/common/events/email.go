package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ses"

	"loan-ledger/internal/common/aws"
)

type sesAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SweepReportMailer emails a summary after each daily sweep and ignores every
// other event type.
type SweepReportMailer struct {
	client sesAPI
	from   string
	to     string
}

func NewSweepReportMailer(client sesAPI, from, to string) *SweepReportMailer {
	return &SweepReportMailer{client: client, from: from, to: to}
}

func (m *SweepReportMailer) Publish(ctx context.Context, ev Event) error {
	if ev.Type != SweepCompleted {
		return nil
	}

	subject := fmt.Sprintf("Interest sweep %v", ev.Payload["date"])
	if _, err := m.client.SendEmail(ctx, aws.TextEmail(m.from, m.to, subject, sweepReportBody(ev))); err != nil {
		return fmt.Errorf("send sweep report: %w", err)
	}
	return nil
}

func sweepReportBody(ev Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily interest sweep for %v\n\n", ev.Payload["date"])
	fmt.Fprintf(&sb, "Loans accrued: %v\n", ev.Payload["loansAccrued"])
	fmt.Fprintf(&sb, "Loans skipped: %v\n", ev.Payload["loansSkipped"])
	fmt.Fprintf(&sb, "Loans failed:  %v\n", ev.Payload["loansFailed"])
	return sb.String()
}
