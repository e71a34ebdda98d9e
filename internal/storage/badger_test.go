package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestBadger(t *testing.T) *BadgerEngine {
	t.Helper()
	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = 0
	cfg.Badger.SyncWrites = false
	engine, err := NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngine_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultKVConfig(dir)
	cfg.Badger.GCInterval = 0

	engine, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Set(ctx, []byte("durable"), []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, []byte("durable"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "yes" {
		t.Errorf("Get(durable) = %q after reopen, want yes", got)
	}
}

func TestBadgerEngine_InMemory(t *testing.T) {
	cfg := KVConfig{Engine: EngineBadger, Badger: DefaultBadgerConfig()}
	cfg.Badger.InMemory = true
	engine, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewBadgerEngine(in-memory) error = %v", err)
	}
	defer engine.Close()

	reclaimed, err := engine.GC(context.Background())
	if err != nil || reclaimed != 0 {
		t.Errorf("GC() = (%d, %v), want (0, nil) for in-memory engine", reclaimed, err)
	}
}

func TestBadgerEngine_GCAndStats(t *testing.T) {
	ctx := context.Background()
	engine := newTestBadger(t)

	for i := 0; i < 50; i++ {
		if err := engine.Set(ctx, []byte{byte(i)}, make([]byte, 512)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := engine.GC(ctx); err != nil {
		t.Fatalf("GC() error = %v", err)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Engine != EngineBadger {
		t.Errorf("stats.Engine = %q, want %q", stats.Engine, EngineBadger)
	}
	if stats.TotalKeys != 50 {
		t.Errorf("stats.TotalKeys = %d, want 50", stats.TotalKeys)
	}
	if stats.LastGCTime == 0 {
		t.Error("stats.LastGCTime should be set after GC")
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestBadger(t)
	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	if _, err := engine.GC(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(engine.metricsLastGCTime); got == 0 {
		t.Error("last GC gauge should be set after GC")
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("registered metric count = %d, want 4", n)
	}
}
