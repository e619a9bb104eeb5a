package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
)

type fakeIndex struct {
	items    []contractx.InventoryItem
	err      error
	queries  int
	replaced map[string][]contractx.InventoryItem
}

func (f *fakeIndex) Replace(_ context.Context, tenantID string, items []contractx.InventoryItem) error {
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[string][]contractx.InventoryItem)
	}
	f.replaced[tenantID] = items
	return nil
}

func (f *fakeIndex) Query(context.Context, string, string, int) ([]contractx.InventoryItem, error) {
	f.queries++
	return f.items, f.err
}

type fakeCatalog struct {
	items map[string][]contractx.InventoryItem
	err   error
	calls int
}

func (f *fakeCatalog) Items(_ context.Context, tenantID string) ([]contractx.InventoryItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items[tenantID], nil
}

var shopCatalog = []contractx.InventoryItem{
	{"item": "Fan", "price": 1500},
	{"item": "Switch", "price": 50},
}

func TestSearcherPrefersSemanticResults(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{items: []contractx.InventoryItem{{"item": "Ceiling Fan"}}}
	cat := &fakeCatalog{items: map[string][]contractx.InventoryItem{"t": shopCatalog}}

	got := NewSearcher(idx, cat).Search(context.Background(), "fan", "t")
	if len(got) != 1 || got[0]["item"] != "Ceiling Fan" {
		t.Fatalf("Search() = %v", got)
	}
	if cat.calls != 0 {
		t.Fatalf("catalog consulted despite semantic hit")
	}
}

func TestSearcherFallsBackOnSemanticEmptyOrError(t *testing.T) {
	t.Parallel()

	for _, idx := range []*fakeIndex{{}, {err: errors.New("qdrant down")}} {
		cat := &fakeCatalog{items: map[string][]contractx.InventoryItem{"t": shopCatalog}}
		got := NewSearcher(idx, cat).Search(context.Background(), "fan", "t")
		if len(got) != 1 || got[0]["item"] != "Fan" {
			t.Fatalf("Search() with index err=%v = %v, want keyword Fan", idx.err, got)
		}
	}
}

func TestSearcherWithoutIndexUsesKeyword(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{items: map[string][]contractx.InventoryItem{"t": shopCatalog}}
	got := NewSearcher(nil, cat).Search(context.Background(), "", "t")
	if len(got) != 2 {
		t.Fatalf("Search(empty) = %v, want whole catalog", got)
	}
}

func TestSearcherCatalogFailureIsEmpty(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metricsx.New(reg)
	cat := &fakeCatalog{err: errors.New("sheet unreachable")}

	got := NewSearcher(&fakeIndex{err: errors.New("down")}, cat, WithMetrics(m)).Search(context.Background(), "fan", "t")
	if got == nil || len(got) != 0 {
		t.Fatalf("Search() = %#v, want empty non-nil", got)
	}
	if v := testutil.ToFloat64(m.SearchPath.WithLabelValues("empty", "true")); v != 1 {
		t.Fatalf("search metric = %v, want 1", v)
	}
}
