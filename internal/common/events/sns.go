package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"

	"loan-ledger/internal/common/aws"
)

type snsAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSPublisher sends each event as JSON to a topic, with the event type and
// loan id as message attributes.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(client snsAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attrs := map[string]string{"eventType": string(ev.Type)}
	if ev.LoanID != "" {
		attrs["loanId"] = ev.LoanID
	}

	if _, err := p.client.Publish(ctx, aws.TopicMessage(p.topicARN, string(ev.Type), string(body), attrs)); err != nil {
		return fmt.Errorf("sns publish %s: %w", ev.Type, err)
	}
	return nil
}
