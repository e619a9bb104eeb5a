package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
)

// Indexer loads a tenant's catalog and replaces its vector index entries.
type Indexer struct {
	catalog contractx.Catalog
	index   Index
	metrics *metricsx.Metrics
}

func NewIndexer(catalog contractx.Catalog, index Index, m *metricsx.Metrics) *Indexer {
	return &Indexer{catalog: catalog, index: index, metrics: m}
}

func (i *Indexer) Reindex(ctx context.Context, tenantID string) (contractx.IndexResult, error) {
	res := contractx.IndexResult{TenantID: tenantID}
	err := i.reindex(ctx, tenantID, &res)
	res.Err = err
	res.Finished = time.Now().UTC()
	i.metrics.IndexRun(err)
	return res, err
}

func (i *Indexer) reindex(ctx context.Context, tenantID string, res *contractx.IndexResult) error {
	if i.index == nil {
		return fmt.Errorf("%w: no vector index configured", contractx.ErrIndexUnavailable)
	}
	items, err := i.catalog.Items(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load catalog for %s: %w", tenantID, err)
	}
	if err := i.index.Replace(ctx, tenantID, items); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrIndexUnavailable, err)
	}
	res.Items = len(items)
	log.Info().Str("tenant_id", tenantID).Int("items", len(items)).Msg("inventory indexed")
	return nil
}
