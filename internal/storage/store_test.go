package storage

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/feature"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
)

func testRegistry(t *testing.T) *snapshot.Registry {
	t.Helper()
	reg := snapshot.NewRegistry()
	if err := feature.Register(reg); err != nil {
		t.Fatal(err)
	}
	return reg
}

func newTestStore(t *testing.T, kv KVEngine, opts ...Option) *Store {
	t.Helper()
	st, err := NewStore(kv, testRegistry(t), opts...)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return st
}

func newMD(t *testing.T, reg *snapshot.Registry) *snapshot.Snapshot {
	t.Helper()
	typ, err := reg.Lookup(feature.MDSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	topo, err := domain.NewTopology("dimer", 2)
	if err != nil {
		t.Fatal(err)
	}
	s, err := typ.New(topo, snapshot.Params{
		feature.AttrCoordinates: feature.Vectors{{0, 0, 0}, {1, 0, 0}},
		feature.AttrVelocities:  feature.Vectors{{0.5, 0, 0}, {-0.5, 0, 0}},
		feature.AttrBoxVectors:  feature.Cubic(3),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNewStore_RequiresCollaborators(t *testing.T) {
	if _, err := NewStore(nil, snapshot.NewRegistry()); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("NewStore(nil kv) error = %v, want ErrMissingArgument", err)
	}
	if _, err := NewStore(NewMemoryEngine(), nil); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("NewStore(nil registry) error = %v, want ErrMissingArgument", err)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	writer := newTestStore(t, kv)
	orig := newMD(t, writer.types)

	tok, err := writer.Save(ctx, orig)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, _ := orig.Identity(); got != tok {
		t.Errorf("saved snapshot identity = %v, want %v", got, tok)
	}

	// A second store over the same engine sees only what was written.
	reader := newTestStore(t, kv)
	loaded, err := reader.Load(ctx, tok)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Type().Name() != feature.MDSnapshot {
		t.Errorf("loaded type = %q", loaded.Type().Name())
	}
	if loaded.IsReversed() {
		t.Error("loaded snapshot should not be reversed")
	}
	coords, _ := feature.CoordinatesOf(loaded)
	if !slices.Equal(coords, feature.Vectors{{0, 0, 0}, {1, 0, 0}}) {
		t.Errorf("coordinates = %v", coords)
	}
	box, _ := feature.BoxVectorsOf(loaded)
	if box == nil || *box != *feature.Cubic(3) {
		t.Errorf("box_vectors = %v", box)
	}
	if loaded.Topology() == nil || loaded.Topology().Name != "dimer" || loaded.Topology().NAtoms != 2 {
		t.Errorf("topology = %+v", loaded.Topology())
	}

	again, err := reader.Load(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}
	if again != loaded {
		t.Error("loading the same token twice should return the same instance")
	}
}

func TestStore_ReversalSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	writer := newTestStore(t, kv)
	orig := newMD(t, writer.types)
	tok, err := writer.Save(ctx, orig)
	if err != nil {
		t.Fatal(err)
	}

	reader := newTestStore(t, kv)
	loaded, err := reader.Load(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}

	ref, ok := loaded.ReversedRef()
	if !ok || !snapshot.IsProxy(ref) {
		t.Fatalf("loaded snapshot should link its partner through a proxy, got %v", ref)
	}

	rev, err := loaded.Reversed(ctx)
	if err != nil {
		t.Fatalf("Reversed() error = %v", err)
	}
	if !rev.IsReversed() {
		t.Error("partner should be reversed")
	}
	back, err := rev.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if back != loaded {
		t.Error("reversing twice after reload should return the loaded snapshot")
	}

	vel, _ := feature.VelocitiesOf(rev)
	if !slices.Equal(vel, feature.Vectors{{-0.5, 0, 0}, {0.5, 0, 0}}) {
		t.Errorf("partner velocities = %v", vel)
	}

	a, _ := feature.CoordinatesOf(loaded)
	b, _ := feature.CoordinatesOf(rev)
	if &a[0] != &b[0] {
		t.Error("the reloaded pair should share its coordinate buffer")
	}
	if rev.Topology() != loaded.Topology() {
		t.Error("the reloaded pair should share its topology")
	}
}

func TestStore_LoadPartnerFirst(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	writer := newTestStore(t, kv)
	orig := newMD(t, writer.types)
	if _, err := writer.Save(ctx, orig); err != nil {
		t.Fatal(err)
	}
	rev, _ := orig.Reversed(ctx)
	revTok, ok := rev.Identity()
	if !ok {
		t.Fatal("Save should assign an identity to the partner")
	}

	reader := newTestStore(t, kv)
	loadedRev, err := reader.Load(ctx, revTok)
	if err != nil {
		t.Fatalf("Load(partner) error = %v", err)
	}
	if !loadedRev.IsReversed() {
		t.Error("partner should load as reversed")
	}

	fwd, err := loadedRev.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if back, _ := fwd.Reversed(ctx); back != loadedRev {
		t.Error("reversal links should connect the two loaded halves")
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())
	s := newMD(t, st.types)

	tok1, err := st.Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	tok2, err := st.Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if tok1 != tok2 {
		t.Errorf("second Save() token = %v, want %v", tok2, tok1)
	}

	rev, _ := s.Reversed(ctx)
	revTok, err := st.Save(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	if own, _ := rev.Identity(); own != revTok {
		t.Errorf("saving the partner returned %v, want its own token %v", revTok, own)
	}

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestStore_MirroredPartnerRecord(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())

	shared := newMD(t, st.types)
	if _, err := st.Save(ctx, shared); err != nil {
		t.Fatal(err)
	}

	infos, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(infos))
	}
	mirrored := 0
	for _, info := range infos {
		if info.Mirrored {
			mirrored++
			if len(info.Attributes) != 0 {
				t.Errorf("mirrored record should carry no attributes, got %v", info.Attributes)
			}
			continue
		}
		if !slices.Equal(info.Attributes, []string{"box_vectors", "coordinates", "velocities"}) {
			t.Errorf("stored attributes = %v", info.Attributes)
		}
	}
	if mirrored != 1 {
		t.Errorf("mirrored records = %d, want 1", mirrored)
	}
}

func TestStore_UnsharedPartnerWrittenInFull(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	st := newTestStore(t, kv)

	s := newMD(t, st.types)
	rev, err := s.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := rev.Set(feature.AttrCoordinates, feature.Vectors{{9, 9, 9}, {8, 8, 8}}); err != nil {
		t.Fatal(err)
	}
	revTok, err := st.Save(ctx, rev)
	if err != nil {
		t.Fatal(err)
	}
	fwdTok, _ := s.Identity()

	reader := newTestStore(t, kv)
	for tok, want := range map[domain.IdentityToken]feature.Vectors{
		revTok: {{9, 9, 9}, {8, 8, 8}},
		fwdTok: {{0, 0, 0}, {1, 0, 0}},
	} {
		loaded, err := reader.Load(ctx, tok)
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := feature.CoordinatesOf(loaded); !slices.Equal(got, want) {
			t.Errorf("coordinates of %v = %v, want %v", tok, got, want)
		}
	}
}

func TestStore_LoadErrors(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	st := newTestStore(t, kv)
	tok, err := st.Save(ctx, newMD(t, st.types))
	if err != nil {
		t.Fatal(err)
	}

	missing, _ := domain.NewIdentityToken()
	corrupt, _ := domain.NewIdentityToken()
	frame, _ := kv.Get(ctx, snapshotKey(tok))
	frame[len(frame)-2] ^= 0xff
	if err := kv.Set(ctx, snapshotKey(corrupt), frame); err != nil {
		t.Fatal(err)
	}

	// A registry where MDSnapshot has a different attribute set.
	otherTypes := snapshot.NewRegistry()
	if _, err := otherTypes.Compose(feature.MDSnapshot, feature.Coordinates, feature.Topology); err != nil {
		t.Fatal(err)
	}
	mismatched, err := NewStore(kv, otherTypes)
	if err != nil {
		t.Fatal(err)
	}
	unregistered, err := NewStore(kv, snapshot.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		store *Store
		tok   domain.IdentityToken
		want  error
	}{
		{"zero token", st, domain.IdentityToken{}, domain.ErrMissingArgument},
		{"missing", st, missing, domain.ErrSnapshotNotFound},
		{"corrupted", st, corrupt, domain.ErrCorruptedRecord},
		{"schema mismatch", mismatched, tok, domain.ErrSchemaMismatch},
		{"unregistered type", unregistered, tok, domain.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.store.Load(ctx, tt.tok)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_LoadBadPartnerNotCached(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	st := newTestStore(t, kv)
	tok, err := st.Save(ctx, newMD(t, st.types))
	if err != nil {
		t.Fatal(err)
	}

	frame, err := kv.Get(ctx, snapshotKey(tok))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := decodeSnapshotRecord(frame)
	if err != nil {
		t.Fatal(err)
	}
	rec.Partner = "snap-not-a-token"
	if frame, err = encodeFrame(kindSnapshot, rec); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, snapshotKey(tok), frame); err != nil {
		t.Fatal(err)
	}

	fresh := newTestStore(t, kv)
	for i := range 2 {
		if _, err := fresh.Load(ctx, tok); !errors.Is(err, domain.ErrCorruptedRecord) {
			t.Errorf("Load() #%d error = %v, want ErrCorruptedRecord", i+1, err)
		}
	}
	if n := fresh.Cached(); n != 0 {
		t.Errorf("Cached() = %d, want 0 after a failed load", n)
	}
}

func TestStore_SaveErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())

	foreign, err := snapshot.Compose("Foreign", feature.Coordinates)
	if err != nil {
		t.Fatal(err)
	}
	topo, _ := domain.NewTopology("x", 1)
	f, err := foreign.New(topo, snapshot.Params{feature.AttrCoordinates: feature.Zeros(1)})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		snap *snapshot.Snapshot
		want error
	}{
		{"nil", nil, domain.ErrMissingArgument},
		{"abstract", &snapshot.Snapshot{}, domain.ErrAbstractInstantiation},
		{"unregistered type", f, domain.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := st.Save(ctx, tt.snap); !errors.Is(err, tt.want) {
				t.Errorf("Save() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_Topology(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())

	topo, _ := domain.NewTopology("water", 3)
	if err := st.SaveTopology(ctx, topo); err != nil {
		t.Fatal(err)
	}
	same, _ := domain.NewTopology("water", 3)
	if err := st.SaveTopology(ctx, same); err != nil {
		t.Errorf("saving an equal topology again error = %v", err)
	}
	clash, _ := domain.NewTopology("water", 4)
	if err := st.SaveTopology(ctx, clash); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("SaveTopology(clash) error = %v, want ErrInvalidArgument", err)
	}

	got, err := st.Topology(ctx, "water")
	if err != nil {
		t.Fatal(err)
	}
	if got != topo {
		t.Error("Topology() should return the first stored pointer")
	}
	if _, err := st.Topology(ctx, "ice"); !errors.Is(err, domain.ErrTopologyNotFound) {
		t.Errorf("Topology(ice) error = %v, want ErrTopologyNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())
	s := newMD(t, st.types)
	tok, err := st.Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	rev, _ := s.Reversed(ctx)
	revTok, _ := rev.Identity()

	if err := st.Delete(ctx, revTok); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, tk := range []domain.IdentityToken{tok, revTok} {
		if _, err := st.Load(ctx, tk); !errors.Is(err, domain.ErrSnapshotNotFound) {
			t.Errorf("Load(%v) after Delete error = %v, want ErrSnapshotNotFound", tk, err)
		}
	}
	if err := st.Delete(ctx, tok); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSnapshotNotFound", err)
	}
	if n, _ := st.Count(ctx); n != 0 {
		t.Errorf("Count() = %d after Delete, want 0", n)
	}
}

func TestStore_ProxyResolvesThroughStore(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	writer := newTestStore(t, kv)
	tok, err := writer.Save(ctx, newMD(t, writer.types))
	if err != nil {
		t.Fatal(err)
	}

	reader := newTestStore(t, kv)
	p1, p2 := reader.Proxy(tok), reader.Proxy(tok)
	eq, err := p1.Equal(ctx, p2)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("two proxies for one token should compare equal")
	}
	s1, _ := p1.Subject(ctx)
	s2, _ := p2.Subject(ctx)
	if s1 != s2 {
		t.Error("proxies for one token should resolve to the same instance")
	}
}

func TestStore_Compare(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, NewMemoryEngine())
	tok, err := st.Save(ctx, newMD(t, st.types))
	if err != nil {
		t.Fatal(err)
	}
	other, err := st.Save(ctx, newMD(t, st.types))
	if err != nil {
		t.Fatal(err)
	}
	snap, err := st.Load(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}
	rev, _ := snap.Reversed(ctx)
	partner, _ := rev.Identity()
	missing, _ := domain.NewIdentityToken()

	tests := []struct {
		name    string
		a, b    domain.IdentityToken
		want    Comparison
		wantErr bool
	}{
		{"same", tok, tok, Comparison{Equal: true}, false},
		{"partner", tok, partner, Comparison{Partners: true}, false},
		{"partner reversed", partner, tok, Comparison{Partners: true}, false},
		{"unrelated", tok, other, Comparison{}, false},
		{"missing first", missing, tok, Comparison{}, true},
		{"missing second", tok, missing, Comparison{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Compare(ctx, tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Compare() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStore_ConcurrentLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	writer := newTestStore(t, kv)
	tok, err := writer.Save(ctx, newMD(t, writer.types))
	if err != nil {
		t.Fatal(err)
	}

	reader := newTestStore(t, kv)
	const n = 32
	results := make([]*snapshot.Snapshot, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reader.Load(ctx, tok)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	for i := range results {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d loaded a distinct instance", i)
		}
	}
}

func TestStore_BackupRestore(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t, NewMemoryEngine())
	tok, err := src.Save(ctx, newMD(t, src.types))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := src.Backup(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	dst := newTestStore(t, NewMemoryEngine())
	if err := dst.Restore(ctx, &buf); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	loaded, err := dst.Load(ctx, tok)
	if err != nil {
		t.Fatalf("Load() after Restore error = %v", err)
	}
	if n, _ := feature.NAtomsOf(loaded); n != 2 {
		t.Errorf("n_atoms = %d, want 2", n)
	}
}

func TestStore_BadgerReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = 0

	kv, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := newTestStore(t, kv)
	tok, err := st.Save(ctx, newMD(t, st.types))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	kv2, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	st2 := newTestStore(t, kv2)
	defer st2.Close()

	loaded, err := st2.Load(ctx, tok)
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	rev, err := loaded.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if back, _ := rev.Reversed(ctx); back != loaded {
		t.Error("reversal identity should survive a reopen")
	}
}

func TestStore_Metrics(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryEngine()
	m := metric.NewRegistry()
	writer := newTestStore(t, kv, WithMetrics(m))
	tok, err := writer.Save(ctx, newMD(t, writer.types))
	if err != nil {
		t.Fatal(err)
	}

	reader := newTestStore(t, kv, WithMetrics(m))
	if _, err := reader.Resolve(ctx, tok); err != nil {
		t.Fatal(err)
	}
	if _, err := reader.Resolve(ctx, tok); err != nil {
		t.Fatal(err)
	}
	missing, _ := domain.NewIdentityToken()
	_, _ = reader.Resolve(ctx, missing)

	if got := testutil.ToFloat64(m.SnapshotsSaved); got != 2 {
		t.Errorf("saved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SnapshotsLoaded); got != 1 {
		t.Errorf("loaded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Resolutions.WithLabelValues(metric.ResultOK)); got != 2 {
		t.Errorf("ok resolutions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Resolutions.WithLabelValues(metric.ResultError)); got != 1 {
		t.Errorf("failed resolutions = %v, want 1", got)
	}
}
