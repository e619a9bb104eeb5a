package contract

import "context"

// BusinessLookup is the strict tenant lookup: a miss is ErrTenantNotFound.
type BusinessLookup interface {
	Get(ctx context.Context, id string) (Business, error)
}

// TenantResolver is the lenient lookup used in conversations: unknown
// tenants resolve to a default configuration.
type TenantResolver interface {
	Resolve(ctx context.Context, id string) Business
}

type Catalog interface {
	Items(ctx context.Context, tenantID string) ([]InventoryItem, error)
}

// Searcher never fails; retrieval problems degrade to fewer results.
type Searcher interface {
	Search(ctx context.Context, query string, tenantID string) []InventoryItem
}

type OrderStore interface {
	AddOrder(ctx context.Context, tenantID string, order Order) error
	GetOrders(ctx context.Context, tenantID string) ([]OrderRecord, error)
}

type IndexScheduler interface {
	Schedule(ctx context.Context, tenantID string)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, languageTag string) ([]byte, error)
}
