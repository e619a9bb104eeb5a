package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// Backend is the authoritative list of tenants.
type Backend interface {
	Load(ctx context.Context) ([]contractx.Business, error)
	Append(ctx context.Context, b contractx.Business) error
}

// Watcher is implemented by backends that can signal out-of-band changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Registry caches tenant records in memory. A cache miss triggers one
// authoritative reload before a lookup gives up.
type Registry struct {
	backend   Backend
	scheduler contractx.IndexScheduler

	mu    sync.RWMutex
	byID  map[string]contractx.Business
	order []string

	createMu sync.Mutex
	group    singleflight.Group
}

type Option func(*Registry)

// WithIndexScheduler makes Create schedule inventory indexing for new tenants.
func WithIndexScheduler(s contractx.IndexScheduler) Option {
	return func(r *Registry) {
		r.scheduler = s
	}
}

func NewRegistry(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		byID:    make(map[string]contractx.Business),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Reload replaces the cache with the backend's current list.
func (r *Registry) Reload(ctx context.Context) error {
	list, err := r.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load businesses: %w", err)
	}

	byID := make(map[string]contractx.Business, len(list))
	order := make([]string, 0, len(list))
	for _, b := range list {
		if strings.TrimSpace(b.ID) == "" {
			continue
		}
		if _, dup := byID[b.ID]; !dup {
			order = append(order, b.ID)
		}
		byID[b.ID] = b
	}

	r.mu.Lock()
	r.byID = byID
	r.order = order
	r.mu.Unlock()
	return nil
}

func (r *Registry) cached(id string) (contractx.Business, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	return b, ok
}

// Get is the strict lookup.
func (r *Registry) Get(ctx context.Context, id string) (contractx.Business, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Business{}, fmt.Errorf("%w: empty id", contractx.ErrTenantNotFound)
	}
	if b, ok := r.cached(id); ok {
		return b, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if b, ok := r.cached(id); ok {
			return b, nil
		}
		if err := r.Reload(ctx); err != nil {
			return nil, err
		}
		if b, ok := r.cached(id); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: %s", contractx.ErrTenantNotFound, id)
	})
	if err != nil {
		return contractx.Business{}, err
	}
	return v.(contractx.Business), nil
}

// Resolve never fails: unknown tenants get a retail default under the
// requested id.
func (r *Registry) Resolve(ctx context.Context, id string) contractx.Business {
	b, err := r.Get(ctx, id)
	if err == nil {
		return b
	}
	if !errors.Is(err, contractx.ErrTenantNotFound) {
		log.Warn().Err(err).Str("tenant_id", id).Msg("business lookup failed, using default")
	}
	return Default(id)
}

// Default is the configuration used for tenants that are not registered.
func Default(id string) contractx.Business {
	return contractx.Business{ID: id, Name: id, Type: contractx.BusinessRetail}
}

// List reloads from the backend and returns tenants in backing order.
func (r *Registry) List(ctx context.Context) ([]contractx.Business, error) {
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *Registry) snapshot() []contractx.Business {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contractx.Business, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Create registers a tenant. An empty id becomes biz_<n+1>. Indexing of the
// tenant's inventory is scheduled afterwards and never affects the result.
func (r *Registry) Create(ctx context.Context, b contractx.Business) (contractx.Business, error) {
	b.ID = strings.TrimSpace(b.ID)
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return contractx.Business{}, fmt.Errorf("%w: business name is required", contractx.ErrValidation)
	}
	if b.Type == "" {
		b.Type = contractx.BusinessRetail
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if err := r.Reload(ctx); err != nil {
		return contractx.Business{}, err
	}

	if b.ID == "" {
		b.ID = r.nextID()
	} else if _, exists := r.cached(b.ID); exists {
		return contractx.Business{}, fmt.Errorf("%w: business %q already exists", contractx.ErrValidation, b.ID)
	}

	if err := r.backend.Append(ctx, b); err != nil {
		return contractx.Business{}, fmt.Errorf("append business: %w", err)
	}

	r.mu.Lock()
	r.byID[b.ID] = b
	r.order = append(r.order, b.ID)
	r.mu.Unlock()

	log.Info().Str("tenant_id", b.ID).Str("type", string(b.Type)).Msg("business created")

	if r.scheduler != nil && strings.TrimSpace(b.SheetID) != "" {
		r.scheduler.Schedule(context.WithoutCancel(ctx), b.ID)
	}
	return b, nil
}

func (r *Registry) nextID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := fmt.Sprintf("biz_%d", len(r.order)+1)
	if _, taken := r.byID[id]; taken {
		id = id + "_" + uuid.NewString()[:8]
	}
	return id
}

// Watch reloads the cache whenever the backend reports a change. It returns
// immediately when the backend cannot be watched.
func (r *Registry) Watch(ctx context.Context) error {
	w, ok := r.backend.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		if err := r.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("business registry reload after change failed")
			return
		}
		log.Info().Msg("business registry reloaded")
	})
}
