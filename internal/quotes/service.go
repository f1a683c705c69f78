// Package quotes serves token prices from CoinMarketCap behind a per-slug
// TTL cache.
package quotes

import (
	"context"
	"errors"
	"strings"
	"time"

	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/metrics"
)

var (
	ErrMissingSlug   = errors.New("missing slug parameter")
	ErrNotConfigured = errors.New("quote api key not configured")
	ErrUpstream      = errors.New("failed to fetch token price")
	ErrTokenNotFound = errors.New("token not found")
)

type source interface {
	Configured() bool
	Fetch(ctx context.Context, slug string) (*Quote, error)
}

type Service struct {
	source source
	cache  Cache
	now    func() time.Time
	log    logger.Logger
}

func NewService(src source, cache Cache, log logger.Logger) *Service {
	return &Service{source: src, cache: cache, now: time.Now, log: log}
}

// Price returns the cached quote for slug while it is fresh, otherwise a new
// one from the API. A broken cache degrades to fetching on every call.
func (s *Service) Price(ctx context.Context, slug string) (*Quote, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrMissingSlug
	}
	if !s.source.Configured() {
		return nil, ErrNotConfigured
	}

	entry, ok, err := s.cache.Get(ctx, slug)
	switch {
	case err != nil:
		metrics.QuoteCacheRequests.WithLabelValues("error").Inc()
		s.log.Warn("Quote cache read failed", map[string]interface{}{"slug": slug, "error": err.Error()})
	case ok:
		metrics.QuoteCacheRequests.WithLabelValues("hit").Inc()
		return &entry.Quote, nil
	default:
		metrics.QuoteCacheRequests.WithLabelValues("miss").Inc()
	}

	quote, err := s.source.Fetch(ctx, slug)
	if err != nil {
		s.log.Error("Token price fetch failed", map[string]interface{}{"slug": slug, "error": err.Error()})
		return nil, err
	}

	if err := s.cache.Set(ctx, slug, Entry{Quote: *quote, FetchedAt: s.now().UTC()}); err != nil {
		s.log.Warn("Quote cache write failed", map[string]interface{}{"slug": slug, "error": err.Error()})
	}
	return quote, nil
}
