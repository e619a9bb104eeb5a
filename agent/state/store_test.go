package state

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}

	sess := NewSession("k", "biz_1", "sys", time.Now())
	if err := store.Update(ctx, sess); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Update() before Create error = %v, want ErrSessionNotFound", err)
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.AddToCart(contractx.LineItem{Name: "Fan", Quantity: 1})

	again, _ := store.Get(ctx, "k")
	if !again.CartEmpty() {
		t.Fatalf("stored session changed without Update")
	}

	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ = store.Get(ctx, "k")
	if len(again.Cart) != 1 {
		t.Fatalf("cart after Update = %#v", again.Cart)
	}

	if err := store.Evict(ctx, "k"); err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after Evict error = %v", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore(WithMemoryTTL(time.Minute), WithClock(clock))

	ctx := context.Background()
	if err := store.Create(ctx, NewSession("k", "t", "sys", now)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after expiry error = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want expired entry removed", store.Len())
	}
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Create(context.Background(), &Session{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Create() error = %v, want ErrInvalidSession", err)
	}
	if err := store.Create(context.Background(), nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Create(nil) error = %v, want ErrNilSession", err)
	}
}
