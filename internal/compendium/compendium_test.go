package compendium

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func writePack(t *testing.T, root, pack string, entries map[string]string) {
	t.Helper()
	dir := filepath.Join(root, pack)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, doc := range entries {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func writeCompressed(t *testing.T, path, doc string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLibrary(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "srd-feats", map[string]string{
		"alert.json":  `{"name": "Alert", "type": "feat", "system": {"description": "Always ready."}}`,
		"tough.json":  `{"_id": "tough", "name": "Tough", "type": "feat"}`,
		"notes.txt":   `not an entry`,
		"broken.yaml": `skipped: too`,
	})
	writeCompressed(t, filepath.Join(root, "srd-feats", "lucky.json.zst"),
		`{"name": "Lucky", "type": "feat"}`)

	lib, err := Open(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Run("packs listed", func(t *testing.T) {
		packs, err := lib.Packs()
		if err != nil {
			t.Fatal(err)
		}
		if len(packs) != 1 || packs[0] != "srd-feats" {
			t.Fatalf("packs = %v", packs)
		}
	})

	t.Run("json and compressed entries load", func(t *testing.T) {
		items, err := lib.LoadPack("srd-feats")
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 3 {
			t.Fatalf("entries = %d, want 3", len(items))
		}
		if items["alert"].Name != "Alert" {
			t.Fatal("filename stem must key entries without _id")
		}
		if items["tough"].ID != "tough" {
			t.Fatal("_id must key entries that carry one")
		}
		if items["lucky"].Name != "Lucky" {
			t.Fatal("compressed entry must load")
		}
	})

	t.Run("schema violation fails the pack", func(t *testing.T) {
		writePack(t, root, "bad-pack", map[string]string{
			"noname.json": `{"type": "feat"}`,
		})
		if _, err := lib.LoadPack("bad-pack"); err == nil {
			t.Fatal("entry without a name must fail validation")
		}
	})

	t.Run("duplicate ids fail the pack", func(t *testing.T) {
		writePack(t, root, "dup-pack", map[string]string{
			"a.json": `{"_id": "same", "name": "A", "type": "feat"}`,
			"b.json": `{"_id": "same", "name": "B", "type": "feat"}`,
		})
		if _, err := lib.LoadPack("dup-pack"); err == nil {
			t.Fatal("duplicate entry ids must fail")
		}
	})

	t.Run("unknown pack errors", func(t *testing.T) {
		if _, err := lib.LoadPack("nope"); err == nil {
			t.Fatal("missing pack must error")
		}
	})

	t.Run("missing root errors", func(t *testing.T) {
		if _, err := Open(filepath.Join(root, "missing")); err == nil {
			t.Fatal("missing root must error")
		}
	})
}

// manualScheduler queues deferred work until Run, standing in for the
// next-turn timer.
type manualScheduler struct {
	mu       sync.Mutex
	deferred []func()
}

func (m *manualScheduler) Defer(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred = append(m.deferred, fn)
}

func (m *manualScheduler) Run() {
	m.mu.Lock()
	fns := m.deferred
	m.deferred = nil
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *manualScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deferred)
}

func TestCacheCoalescing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writePack(t, root, "srd-feats", map[string]string{
		"alert.json": `{"name": "Alert", "type": "feat"}`,
		"tough.json": `{"name": "Tough", "type": "feat"}`,
	})
	lib, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	sched := &manualScheduler{}
	cache := NewCache(lib, sched)

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, 3)
	for _, entry := range []string{"alert", "tough", "missing"} {
		go func(entry string) {
			item, err := cache.Item(ctx, "srd-feats", entry)
			name := ""
			if item != nil {
				name = item.Name
			}
			results <- outcome{name: name, err: err}
		}(entry)
	}

	for cache.waiting("srd-feats") < 3 {
		runtime.Gosched()
	}
	if got := sched.count(); got != 1 {
		t.Fatalf("deferred loads = %d, want 1 for all same-tick requests", got)
	}
	sched.Run()

	var failures int
	names := make(map[string]bool)
	for i := 0; i < 3; i++ {
		res := <-results
		if res.err != nil {
			failures++
			continue
		}
		names[res.name] = true
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want 1 (the missing entry)", failures)
	}
	if !names["Alert"] || !names["Tough"] {
		t.Fatalf("resolved = %v", names)
	}

	t.Run("cached pack served without another load", func(t *testing.T) {
		item, err := cache.Item(ctx, "srd-feats", "alert")
		if err != nil {
			t.Fatal(err)
		}
		if item.Name != "Alert" {
			t.Fatalf("item = %q", item.Name)
		}
		if sched.count() != 0 {
			t.Fatal("cached lookup must not schedule a load")
		}
	})

	t.Run("served items are copies", func(t *testing.T) {
		item, err := cache.Item(ctx, "srd-feats", "alert")
		if err != nil {
			t.Fatal(err)
		}
		item.Name = "Tampered"
		again, err := cache.Item(ctx, "srd-feats", "alert")
		if err != nil {
			t.Fatal(err)
		}
		if again.Name != "Alert" {
			t.Fatal("cache must not expose its internal copy")
		}
	})
}

func TestCacheCancellation(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "srd-feats", map[string]string{
		"alert.json": `{"name": "Alert", "type": "feat"}`,
	})
	lib, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	sched := &manualScheduler{}
	cache := NewCache(lib, sched)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Item(ctx, "srd-feats", "alert"); err == nil {
		t.Fatal("cancelled context must abort the wait")
	}
}
