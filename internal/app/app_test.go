package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/LJTian/HarareMetro/internal/config"
	"github.com/LJTian/HarareMetro/internal/logging"
	"github.com/LJTian/HarareMetro/internal/processor"
	"github.com/LJTian/HarareMetro/internal/storage"
)

func TestNewWithoutRedisOrPostgres(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("SOURCES_FILE", "")

	a, err := New(config.Load(), logging.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close()

	if a.Archive != nil {
		t.Fatalf("archive should be nil without POSTGRES_DSN")
	}
	if a.Registry.Len() != 8 {
		t.Fatalf("default registry should have 8 sources, got %d", a.Registry.Len())
	}
	if a.NewUpdater(a.Registry, a.Snapshot) == nil {
		t.Fatalf("NewUpdater returned nil")
	}
}

func TestNewRejectsBadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - name: \"\"\n    url: https://x.example/feed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOURCES_FILE", path)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := New(config.Load(), logging.Nop()); err == nil {
		t.Fatalf("expected error for a source without a name")
	}
}

type staticFetcher struct{ body string }

func (f staticFetcher) Fetch(collector.Source) (string, error) { return f.body, nil }

type recordingArchiver struct {
	mu    sync.Mutex
	saved []processor.Article
}

func (r *recordingArchiver) SaveBatch(_ context.Context, a []processor.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, a...)
	return nil
}

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("SOURCES_FILE", "")

	a, err := New(config.Load(), logging.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(a.Close)
	a.fetcher = staticFetcher{body: `<rss><channel><item><title>Harare CBD roads</title><link>https://news.example/cbd</link></item></channel></rss>`}
	return a
}

func TestUpdaterWritesSnapshotAndArchive(t *testing.T) {
	a := newMemoryApp(t)
	arch := &recordingArchiver{}
	a.archiver = arch

	reg, _ := collector.NewRegistry(a.Registry.Sources()[:1])
	if _, err := a.NewUpdater(reg, a.Snapshot).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(arch.saved) != 1 {
		t.Fatalf("archive received %d articles, want 1", len(arch.saved))
	}
	if _, ok, _ := a.Snapshot.LatestRaw(context.Background()); !ok {
		t.Fatalf("snapshot should be written")
	}
}

func TestDryRunUpdaterHasNoSideEffects(t *testing.T) {
	a := newMemoryApp(t)
	arch := &recordingArchiver{}
	a.archiver = arch

	reg, _ := collector.NewRegistry(a.Registry.Sources()[:1])
	res, err := a.NewDryRunUpdater(reg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.TotalArticles != 1 {
		t.Fatalf("dry run should still report fetched items, got %+v", res)
	}
	if len(arch.saved) != 0 {
		t.Fatalf("dry run must not archive, got %d articles", len(arch.saved))
	}
	if _, ok, _ := a.Snapshot.LatestRaw(context.Background()); ok {
		t.Fatalf("dry run must not write %s", storage.LatestNewsKey)
	}
}
