package business

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	f := NewFileBackend(filepath.Join(t.TempDir(), "business_config.json"))
	list, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("Load() = %#v, want empty", list)
	}
}

func TestFileBackendAppendRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "business_config.json")
	f := NewFileBackend(path)
	ctx := context.Background()

	want := contractx.Business{
		ID:      "biz_1",
		Name:    "Sharma Electricals",
		Type:    contractx.BusinessRetail,
		SheetID: "sheet-1",
		Config:  map[string]any{"language": "hi-IN"},
	}
	if err := f.Append(ctx, want); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := f.Append(ctx, contractx.Business{ID: "biz_2", Name: "Cafe"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	list, err := NewFileBackend(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Load() len = %d, want 2", len(list))
	}
	if list[0].SheetID != "sheet-1" || list[0].Config["language"] != "hi-IN" {
		t.Fatalf("Load()[0] = %#v", list[0])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only the config file", len(entries))
	}
}

func TestRegistryWatchReloadsOnFileChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "business_config.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	reg := NewRegistry(NewFileBackend(path))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reg.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`[{"id":"biz_9","name":"Late","type":"retail"}]`), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.cached("biz_9"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry did not pick up file change")
}
