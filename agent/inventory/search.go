package inventory

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
)

const DefaultTopK = 5

// Index is the semantic tier: a per-tenant vector index.
type Index interface {
	// Replace swaps the tenant's indexed set for items.
	Replace(ctx context.Context, tenantID string, items []contractx.InventoryItem) error
	Query(ctx context.Context, tenantID, query string, k int) ([]contractx.InventoryItem, error)
}

// Searcher tries the semantic index first and falls back to keyword matching
// over the full catalog when it errors or comes back empty.
type Searcher struct {
	index   Index
	catalog contractx.Catalog
	topK    int
	metrics *metricsx.Metrics
}

type SearcherOption func(*Searcher)

func WithTopK(k int) SearcherOption {
	return func(s *Searcher) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithMetrics(m *metricsx.Metrics) SearcherOption {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// NewSearcher builds a Searcher. index may be nil, in which case only the
// keyword tier runs.
func NewSearcher(index Index, catalog contractx.Catalog, opts ...SearcherOption) *Searcher {
	s := &Searcher{index: index, catalog: catalog, topK: DefaultTopK}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Searcher) Search(ctx context.Context, query, tenantID string) []contractx.InventoryItem {
	logger := log.With().Str("tenant_id", tenantID).Str("query", query).Logger()

	semanticFailed := false
	if s.index != nil {
		items, err := s.index.Query(ctx, tenantID, query, s.topK)
		switch {
		case err != nil:
			semanticFailed = true
			logger.Warn().Err(err).Msg("semantic search failed, falling back to keyword")
		case len(items) > 0:
			s.metrics.Search("semantic", false)
			return items
		}
	}

	catalog, err := s.catalog.Items(ctx, tenantID)
	if err != nil {
		logger.Warn().Err(err).Msg("inventory catalog unavailable")
		s.metrics.Search("empty", semanticFailed)
		return []contractx.InventoryItem{}
	}

	found := KeywordSearch(catalog, query)
	path := "keyword"
	if len(found) == 0 {
		path = "empty"
	}
	s.metrics.Search(path, semanticFailed)
	logger.Debug().Int("matches", len(found)).Msg("keyword search")
	return found
}
