package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchPublisher indexes events as an audit trail, keyed by event id
// so a retried publish overwrites instead of duplicating.
type ElasticsearchPublisher struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchPublisher(client *elasticsearch.Client, index string) *ElasticsearchPublisher {
	return &ElasticsearchPublisher{client: client, index: index}
}

func (p *ElasticsearchPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res, err := p.client.Index(
		p.index,
		bytes.NewReader(body),
		p.client.Index.WithContext(ctx),
		p.client.Index.WithDocumentID(ev.ID),
	)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index event: %s", res.Status())
	}
	return nil
}
