package quotes

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	commonhttp "loan-ledger/internal/common/http"
)

const (
	quotesPath   = "/v1/cryptocurrency/quotes/latest"
	apiKeyHeader = "X-CMC_PRO_API_KEY"
	convertTo    = "USD"
)

// Quote is the latest USD price of a token.
type Quote struct {
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
	LastUpdated      string  `json:"last_updated"`
}

// Fetcher reads quotes from the CoinMarketCap API.
type Fetcher struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewFetcher(client *commonhttp.Client, baseURL, apiKey string) *Fetcher {
	return &Fetcher{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (f *Fetcher) Configured() bool {
	return f.apiKey != ""
}

type quotesResponse struct {
	Data map[string]struct {
		Slug  string `json:"slug"`
		Quote map[string]Quote `json:"quote"`
	} `json:"data"`
}

func (f *Fetcher) Fetch(ctx context.Context, slug string) (*Quote, error) {
	if !f.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("slug", slug)
	q.Set("convert", convertTo)

	var resp quotesResponse
	err := f.client.GetJSON(ctx, f.baseURL+quotesPath+"?"+q.Encode(), map[string]string{apiKeyHeader: f.apiKey}, &resp)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: status %d", ErrUpstream, statusErr.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrTokenNotFound
	}

	// the API keys results by coin id; with one slug there is one entry
	ids := make([]string, 0, len(resp.Data))
	for id := range resp.Data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	quote, ok := resp.Data[ids[0]].Quote[convertTo]
	if !ok {
		return nil, fmt.Errorf("%w: no %s quote for %s", ErrUpstream, convertTo, slug)
	}
	return &quote, nil
}
