package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverWorkbook Driver = "workbook"
	DriverPostgres Driver = "postgres"
)

// Opener builds the Source for a tenant.
type Opener func(ctx context.Context, b contractx.Business) (Source, error)

// MemoryOpener gives every tenant its own copy of the mock catalog.
func MemoryOpener() Opener {
	return func(context.Context, contractx.Business) (Source, error) {
		return NewMockSource(), nil
	}
}

// WithMockFallback serves the mock catalog to tenants that have no sheet
// handle instead of failing with ErrNoSource.
func WithMockFallback(open Opener) Opener {
	return func(ctx context.Context, b contractx.Business) (Source, error) {
		src, err := open(ctx, b)
		if errors.Is(err, ErrNoSource) {
			return NewMockSource(), nil
		}
		return src, err
	}
}

func WorkbookOpener(dir string) Opener {
	return func(_ context.Context, b contractx.Business) (Source, error) {
		if strings.TrimSpace(b.SheetID) == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoSource, b.ID)
		}
		return NewWorkbookSource(WorkbookPath(dir, b.SheetID)), nil
	}
}

func PostgresOpener(db bun.IDB) Opener {
	return func(_ context.Context, b contractx.Business) (Source, error) {
		if strings.TrimSpace(b.SheetID) == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoSource, b.ID)
		}
		return NewPostgresSource(db, b.SheetID), nil
	}
}

// Provider resolves and caches one Source per tenant. It also serves as the
// tenant catalog.
type Provider struct {
	lookup   contractx.BusinessLookup
	open     Opener
	fallback string

	mu      sync.Mutex
	sources map[string]Source
}

type ProviderOption func(*Provider)

// WithFallbackTenant lets an unregistered tenant id still get a source,
// built from the default business configuration.
func WithFallbackTenant(id string) ProviderOption {
	return func(p *Provider) {
		p.fallback = strings.TrimSpace(id)
	}
}

func NewProvider(lookup contractx.BusinessLookup, open Opener, opts ...ProviderOption) *Provider {
	p := &Provider{
		lookup:  lookup,
		open:    open,
		sources: make(map[string]Source),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Source returns the tenant's source. Unknown tenants yield
// contract.ErrTenantNotFound.
func (p *Provider) Source(ctx context.Context, tenantID string) (Source, error) {
	p.mu.Lock()
	src, ok := p.sources[tenantID]
	p.mu.Unlock()
	if ok {
		return src, nil
	}

	b, err := p.lookup.Get(ctx, tenantID)
	if errors.Is(err, contractx.ErrTenantNotFound) && p.fallback != "" && tenantID == p.fallback {
		b, err = contractx.Business{ID: tenantID, Name: tenantID, Type: contractx.BusinessRetail}, nil
	}
	if err != nil {
		return nil, err
	}

	src, err = p.open(ctx, b)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.sources[tenantID]; ok {
		return existing, nil
	}
	p.sources[tenantID] = src
	return src, nil
}

// Invalidate drops a cached source so the next call re-resolves the tenant.
func (p *Provider) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.sources, tenantID)
	p.mu.Unlock()
}

// Items returns the tenant's inventory rows in sheet order.
func (p *Provider) Items(ctx context.Context, tenantID string) ([]contractx.InventoryItem, error) {
	src, err := p.Source(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	records, err := src.Records(ctx, WorksheetInventory)
	if err != nil {
		return nil, err
	}
	items := make([]contractx.InventoryItem, len(records))
	for i, r := range records {
		items[i] = contractx.InventoryItem(r)
	}
	return items, nil
}
