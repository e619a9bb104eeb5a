package business

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

type fakeBackend struct {
	mu      sync.Mutex
	list    []contractx.Business
	loads   atomic.Int32
	loadErr error
	delay   time.Duration
}

func (f *fakeBackend) Load(context.Context) ([]contractx.Business, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]contractx.Business(nil), f.list...), nil
}

func (f *fakeBackend) Append(_ context.Context, b contractx.Business) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, b)
	return nil
}

func (f *fakeBackend) add(b contractx.Business) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, b)
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingScheduler) Schedule(_ context.Context, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, tenantID)
}

func TestRegistryGetReloadsOnMiss(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	reg := NewRegistry(backend)
	ctx := context.Background()

	if _, err := reg.Get(ctx, "biz_1"); !errors.Is(err, contractx.ErrTenantNotFound) {
		t.Fatalf("Get() error = %v, want ErrTenantNotFound", err)
	}

	// Written out of band, e.g. by another process.
	backend.add(contractx.Business{ID: "biz_1", Name: "Shop", Type: contractx.BusinessRetail})

	got, err := reg.Get(ctx, "biz_1")
	if err != nil {
		t.Fatalf("Get() after backend change error = %v", err)
	}
	if got.Name != "Shop" {
		t.Fatalf("Get() = %#v", got)
	}

	before := backend.loads.Load()
	if _, err := reg.Get(ctx, "biz_1"); err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	if backend.loads.Load() != before {
		t.Fatalf("cache hit reloaded the backend")
	}
}

func TestRegistryGetCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		list:  []contractx.Business{{ID: "biz_1", Name: "Shop"}},
		delay: 20 * time.Millisecond,
	}
	reg := NewRegistry(backend)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Get(context.Background(), "biz_1"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := backend.loads.Load(); n != 1 {
		t.Fatalf("backend loads = %d, want 1", n)
	}
}

func TestRegistryResolveFallsBackToDefault(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(&fakeBackend{loadErr: errors.New("disk gone")})
	got := reg.Resolve(context.Background(), "electronics_default")
	if got.ID != "electronics_default" || got.Type != contractx.BusinessRetail {
		t.Fatalf("Resolve() = %#v, want retail default", got)
	}
}

func TestRegistryCreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	sched := &recordingScheduler{}
	reg := NewRegistry(backend, WithIndexScheduler(sched))
	ctx := context.Background()

	first, err := reg.Create(ctx, contractx.Business{Name: "Cafe", Type: contractx.BusinessRestaurant, SheetID: "sheet-a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := reg.Create(ctx, contractx.Business{Name: "Hardware"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first.ID != "biz_1" || second.ID != "biz_2" {
		t.Fatalf("ids = %q, %q; want biz_1, biz_2", first.ID, second.ID)
	}
	if second.Type != contractx.BusinessRetail {
		t.Fatalf("default type = %q, want retail", second.Type)
	}
	if len(sched.ids) != 1 || sched.ids[0] != "biz_1" {
		t.Fatalf("scheduled = %v, want only biz_1 (has a sheet)", sched.ids)
	}

	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "biz_1" {
		t.Fatalf("List() = %#v", list)
	}
}

func TestRegistryCreateAvoidsTakenID(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{list: []contractx.Business{{ID: "biz_2", Name: "Manual"}}}
	reg := NewRegistry(backend)

	got, err := reg.Create(context.Background(), contractx.Business{Name: "New"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(got.ID, "biz_2_") {
		t.Fatalf("Create() id = %q, want biz_2_<suffix>", got.ID)
	}
}

func TestRegistryCreateRejectsInvalid(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(&fakeBackend{list: []contractx.Business{{ID: "biz_1", Name: "A"}}})
	ctx := context.Background()

	if _, err := reg.Create(ctx, contractx.Business{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Create(no name) error = %v, want ErrValidation", err)
	}
	if _, err := reg.Create(ctx, contractx.Business{ID: "biz_1", Name: "B"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Create(dup) error = %v, want ErrValidation", err)
	}
}
