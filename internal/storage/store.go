package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
	"github.com/yndnr/trajsnap/internal/telemetry/tracer"
	"github.com/yndnr/trajsnap/pkg/cmap"
)

// Store persists snapshots in a KVEngine and resolves identity tokens back
// to snapshots.
//
// Every snapshot loaded or saved through a Store is kept in an identity
// cache, so resolving the same token twice yields the same instance and
// reversal links survive a round trip with their identity intact.
type Store struct {
	kv         KVEngine
	types      *snapshot.Registry
	cache      *cmap.Map[domain.IdentityToken, *snapshot.Snapshot]
	topologies *cmap.Map[string, *domain.Topology]
	logger     *slog.Logger
	metrics    *metric.Registry
	now        func() time.Time
}

var _ snapshot.Persistence = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records store activity in m.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store over kv. Snapshot types are looked up by name
// in types when records are decoded.
func NewStore(kv KVEngine, types *snapshot.Registry, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, domain.ErrMissingArgument.WithDetails("kv engine is required")
	}
	if types == nil {
		return nil, domain.ErrMissingArgument.WithDetails("type registry is required")
	}

	s := &Store{
		kv:         kv,
		types:      types,
		cache:      cmap.New[domain.IdentityToken, *snapshot.Snapshot](),
		topologies: cmap.New[string, *domain.Topology](),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s, nil
}

// AssignIdentity gives snap a fresh identity token unless it already has
// one, and returns the token snap ends up with.
func (s *Store) AssignIdentity(_ context.Context, snap *snapshot.Snapshot) (domain.IdentityToken, error) {
	if snap == nil {
		return domain.IdentityToken{}, domain.ErrMissingArgument.WithDetails("snapshot is required")
	}
	if tok, ok := snap.Identity(); ok {
		return tok, nil
	}
	tok, err := domain.NewIdentityTokenAt(s.now())
	if err != nil {
		return domain.IdentityToken{}, err
	}
	if err := snap.AssignIdentity(tok); err != nil {
		if errors.Is(err, domain.ErrIdentityAssigned) {
			cur, _ := snap.Identity()
			return cur, nil
		}
		return domain.IdentityToken{}, err
	}
	return tok, nil
}

// Proxy returns a placeholder for tok that resolves through this store.
func (s *Store) Proxy(tok domain.IdentityToken) *snapshot.Proxy {
	return snapshot.NewProxy(tok, s)
}

// SaveTopology stores topo under its name. Saving an equal topology again
// is a no-op; a different topology under a stored name is rejected.
func (s *Store) SaveTopology(ctx context.Context, topo *domain.Topology) error {
	if topo == nil {
		return domain.ErrMissingArgument.WithDetails("topology is required")
	}
	if err := topo.Validate(); err != nil {
		return err
	}

	existing, err := s.Topology(ctx, topo.Name)
	switch {
	case err == nil:
		if *existing != *topo {
			return domain.ErrInvalidArgument.WithDetailsf("topology %q already stored with a different shape", topo.Name)
		}
		return nil
	case !errors.Is(err, domain.ErrTopologyNotFound):
		return err
	}

	frame, err := encodeFrame(kindTopology, topologyRecord{Format: recordFormat, Topology: topo})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, topologyKey(topo.Name), frame); err != nil {
		return domain.ErrStorageError.WithCause(err).WithDetails("write topology")
	}
	s.topologies.GetOrSet(topo.Name, topo)
	s.logger.Debug("topology saved", "name", topo.Name, "n_atoms", topo.NAtoms)
	return nil
}

// Topology returns the stored topology called name. Snapshots loaded from
// this store share the returned pointer.
func (s *Store) Topology(ctx context.Context, name string) (*domain.Topology, error) {
	if topo, ok := s.topologies.Get(name); ok {
		return topo, nil
	}
	frame, err := s.kv.Get(ctx, topologyKey(name))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrTopologyNotFound.WithDetailsf("topology %q", name)
		}
		return nil, domain.ErrStorageError.WithCause(err).WithDetails("read topology")
	}
	topo, err := decodeTopologyRecord(frame)
	if err != nil {
		return nil, err
	}
	topo, _ = s.topologies.GetOrSet(name, topo)
	return topo, nil
}

// Save stores snap together with its reversal partner and returns the
// token of snap. The partner is materialized if needed. Saving a snapshot
// that is already stored returns its token without writing.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) (_ domain.IdentityToken, err error) {
	ctx, span := tracer.Start(ctx, "store.Save")
	defer func() { tracer.End(span, err) }()

	if snap == nil {
		return domain.IdentityToken{}, domain.ErrMissingArgument.WithDetails("snapshot is required")
	}
	if snap.Type() == nil {
		return domain.IdentityToken{}, domain.ErrAbstractInstantiation
	}
	if tok, ok := snap.Identity(); ok {
		stored, err := s.isStored(ctx, tok, snap)
		if err != nil || stored {
			return tok, err
		}
	}

	if err := s.checkType(snap.Type()); err != nil {
		return domain.IdentityToken{}, err
	}
	if topo := snap.Topology(); topo != nil {
		if err := s.SaveTopology(ctx, topo); err != nil {
			return domain.IdentityToken{}, err
		}
	}

	partner, err := snap.Reversed(ctx)
	if err != nil {
		return domain.IdentityToken{}, err
	}
	tok, err := s.AssignIdentity(ctx, snap)
	if err != nil {
		return domain.IdentityToken{}, err
	}
	partnerTok, err := s.AssignIdentity(ctx, partner)
	if err != nil {
		return domain.IdentityToken{}, err
	}

	storedAt := s.now().UnixMilli()
	primary, err := s.encodeRecord(snap, tok, partnerTok, domain.IdentityToken{}, storedAt)
	if err != nil {
		return domain.IdentityToken{}, err
	}
	var mirrorOf domain.IdentityToken
	if partner.SharesValues(snap) {
		mirrorOf = tok
	}
	secondary, err := s.encodeRecord(partner, partnerTok, tok, mirrorOf, storedAt)
	if err != nil {
		return domain.IdentityToken{}, err
	}

	batch := new(Batch).
		Set(snapshotKey(tok), primary).
		Set(snapshotKey(partnerTok), secondary)
	if err := s.kv.Apply(ctx, batch); err != nil {
		return domain.IdentityToken{}, domain.ErrStorageError.WithCause(err).WithDetails("write snapshot pair")
	}

	s.cache.GetOrSet(tok, snap)
	s.cache.GetOrSet(partnerTok, partner)
	s.metrics.ObserveSaved(2)
	s.metrics.SetCachedSnapshots(s.cache.Count())

	span.SetAttributes(
		attribute.String("snapshot.id", tok.String()),
		attribute.String("snapshot.type", snap.Type().Name()),
		attribute.Bool("snapshot.mirrored", !mirrorOf.IsZero()))
	s.logger.Debug("snapshot pair saved",
		"id", tok.String(),
		"partner", partnerTok.String(),
		"type", snap.Type().Name(),
		"mirrored", !mirrorOf.IsZero())
	return tok, nil
}

func (s *Store) isStored(ctx context.Context, tok domain.IdentityToken, snap *snapshot.Snapshot) (bool, error) {
	if cached, ok := s.cache.Get(tok); ok {
		if cached != snap {
			return false, domain.ErrIdentityAssigned.WithDetailsf("token %s belongs to another snapshot", tok)
		}
		return true, nil
	}
	_, err := s.kv.Get(ctx, snapshotKey(tok))
	switch {
	case err == nil:
		s.cache.GetOrSet(tok, snap)
		return true, nil
	case errors.Is(err, ErrKeyNotFound):
		return false, nil
	default:
		return false, domain.ErrStorageError.WithCause(err).WithDetails("read snapshot")
	}
}

func (s *Store) checkType(t *snapshot.Type) error {
	registered, err := s.types.Lookup(t.Name())
	if err != nil {
		return err
	}
	if registered.Fingerprint() != t.Fingerprint() {
		return domain.ErrSchemaMismatch.WithDetailsf("type %q differs from the registered type", t.Name())
	}
	return nil
}

func (s *Store) encodeRecord(snap *snapshot.Snapshot, tok, partner, mirrorOf domain.IdentityToken, storedAt int64) ([]byte, error) {
	rec := snapshotRecord{
		Format:      recordFormat,
		ID:          tok.String(),
		Type:        snap.Type().Name(),
		Fingerprint: snap.Type().Fingerprint(),
		Reversed:    snap.IsReversed(),
		Partner:     partner.String(),
		MirrorOf:    mirrorOf.String(),
		StoredAt:    storedAt,
	}
	if topo := snap.Topology(); topo != nil {
		rec.Topology = topo.Name
	}

	if mirrorOf.IsZero() {
		rec.Attributes = make(map[string]json.RawMessage)
		for _, attr := range snap.Type().StoredAttributes() {
			v, err := snap.Raw(attr.Name)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			data, err := attr.Codec.Marshal(v)
			if err != nil {
				return nil, domain.ErrStorageError.WithCause(err).WithDetailsf("encode attribute %q", attr.Name)
			}
			rec.Attributes[attr.Name] = data
		}
	}
	return encodeFrame(kindSnapshot, rec)
}

// Resolve implements snapshot.Resolver.
func (s *Store) Resolve(ctx context.Context, tok domain.IdentityToken) (*snapshot.Snapshot, error) {
	snap, err := s.Load(ctx, tok)
	if err != nil {
		s.metrics.ObserveResolution(metric.ResultError)
		return nil, err
	}
	s.metrics.ObserveResolution(metric.ResultOK)
	return snap, nil
}

// Load returns the snapshot stored under tok. Repeated loads of the same
// token return the same instance.
func (s *Store) Load(ctx context.Context, tok domain.IdentityToken) (_ *snapshot.Snapshot, err error) {
	if tok.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("identity token is required")
	}
	if snap, ok := s.cache.Get(tok); ok {
		s.metrics.ObserveCacheHit()
		return snap, nil
	}

	ctx, span := tracer.Start(ctx, "store.Load", attribute.String("snapshot.id", tok.String()))
	defer func() { tracer.End(span, err) }()

	start := time.Now()
	rec, err := s.readRecord(ctx, tok)
	if err != nil {
		return nil, err
	}
	snap, err := s.materialize(ctx, tok, rec)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptedRecord) || errors.Is(err, domain.ErrSchemaMismatch) {
			s.logger.Warn("unreadable snapshot record", "id", tok.String(), "error", err)
		}
		return nil, err
	}

	partnerTok, err := partnerToken(rec)
	if err != nil {
		return nil, err
	}

	actual, loaded := s.cache.GetOrSet(tok, snap)
	if loaded {
		s.metrics.ObserveCacheHit()
		return actual, nil
	}
	if err := s.attachPartner(snap, partnerTok); err != nil {
		s.cache.Delete(tok)
		return nil, err
	}

	s.metrics.ObserveLoaded(time.Since(start))
	s.metrics.SetCachedSnapshots(s.cache.Count())
	s.logger.Debug("snapshot loaded", "id", tok.String(), "type", rec.Type)
	return snap, nil
}

func (s *Store) readRecord(ctx context.Context, tok domain.IdentityToken) (*snapshotRecord, error) {
	frame, err := s.kv.Get(ctx, snapshotKey(tok))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrSnapshotNotFound.WithDetailsf("snapshot %s", tok)
		}
		return nil, domain.ErrStorageError.WithCause(err).WithDetails("read snapshot")
	}
	rec, err := decodeSnapshotRecord(frame)
	if err != nil {
		return nil, err
	}
	if rec.ID != tok.String() {
		return nil, domain.ErrCorruptedRecord.WithDetailsf("record %s stored under %s", rec.ID, tok)
	}
	return rec, nil
}

func (s *Store) materialize(ctx context.Context, tok domain.IdentityToken, rec *snapshotRecord) (*snapshot.Snapshot, error) {
	typ, err := s.types.Lookup(rec.Type)
	if err != nil {
		return nil, err
	}
	if typ.Fingerprint() != rec.Fingerprint {
		return nil, domain.ErrSchemaMismatch.WithDetailsf("type %q: stored fingerprint %x, registered %x",
			rec.Type, rec.Fingerprint, typ.Fingerprint())
	}

	var topo *domain.Topology
	if rec.Topology != "" {
		if topo, err = s.Topology(ctx, rec.Topology); err != nil {
			return nil, err
		}
	}

	snap, err := typ.Blank(topo, rec.Reversed)
	if err != nil {
		return nil, err
	}

	if rec.MirrorOf != "" {
		if err := s.fillFromMirror(ctx, snap, rec.MirrorOf); err != nil {
			return nil, err
		}
	} else {
		for _, attr := range typ.StoredAttributes() {
			data, ok := rec.Attributes[attr.Name]
			if !ok {
				continue
			}
			v, err := attr.Codec.Unmarshal(data)
			if err != nil {
				return nil, domain.ErrCorruptedRecord.WithCause(err).WithDetailsf("decode attribute %q", attr.Name)
			}
			if err := snap.Set(attr.Name, v); err != nil {
				return nil, domain.ErrCorruptedRecord.WithCause(err).WithDetailsf("restore attribute %q", attr.Name)
			}
		}
	}

	if err := snap.AssignIdentity(tok); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) fillFromMirror(ctx context.Context, snap *snapshot.Snapshot, mirror string) error {
	srcTok, err := domain.ParseIdentityToken(mirror)
	if err != nil {
		return domain.ErrCorruptedRecord.WithCause(err).WithDetails("mirror token")
	}
	src, err := s.Load(ctx, srcTok)
	if err != nil {
		return err
	}
	if src.Type() != snap.Type() {
		return domain.ErrCorruptedRecord.WithDetailsf("mirror %s has type %q", mirror, src.Type().Name())
	}
	for _, attr := range snap.Type().StoredAttributes() {
		v, err := src.Raw(attr.Name)
		if err != nil {
			return err
		}
		if err := snap.Set(attr.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// attachPartner links snap to its stored partner: directly when the partner
// is already cached, otherwise through a proxy.
func (s *Store) attachPartner(snap *snapshot.Snapshot, partnerTok domain.IdentityToken) error {
	if partnerTok.IsZero() {
		return nil
	}
	if partner, ok := s.cache.Get(partnerTok); ok {
		return snap.LinkReversed(partner)
	}
	return snap.LinkReversed(s.Proxy(partnerTok))
}

// partnerToken returns the partner token of rec, or the zero token when
// the record has no partner.
func partnerToken(rec *snapshotRecord) (domain.IdentityToken, error) {
	if rec.Partner == "" {
		return domain.IdentityToken{}, nil
	}
	tok, err := domain.ParseIdentityToken(rec.Partner)
	if err != nil {
		return domain.IdentityToken{}, domain.ErrCorruptedRecord.WithCause(err).WithDetails("partner token")
	}
	return tok, nil
}

// Delete removes the snapshot stored under tok together with its partner.
func (s *Store) Delete(ctx context.Context, tok domain.IdentityToken) (err error) {
	ctx, span := tracer.Start(ctx, "store.Delete", attribute.String("snapshot.id", tok.String()))
	defer func() { tracer.End(span, err) }()

	rec, err := s.readRecord(ctx, tok)
	if err != nil {
		return err
	}

	partnerTok, err := partnerToken(rec)
	if err != nil {
		return err
	}
	batch := new(Batch).Delete(snapshotKey(tok))
	if !partnerTok.IsZero() {
		batch.Delete(snapshotKey(partnerTok))
	}
	if err := s.kv.Apply(ctx, batch); err != nil {
		return domain.ErrStorageError.WithCause(err).WithDetails("delete snapshot pair")
	}

	s.cache.Delete(tok)
	if !partnerTok.IsZero() {
		s.cache.Delete(partnerTok)
	}
	s.metrics.ObserveDeleted(batch.Len())
	s.metrics.SetCachedSnapshots(s.cache.Count())
	s.logger.Debug("snapshot pair deleted", "id", tok.String(), "partner", rec.Partner)
	return nil
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Equal    bool `json:"equal" yaml:"equal"`
	Partners bool `json:"partners" yaml:"partners"`
}

// Compare reports whether a and b name the same snapshot and, when they
// do not, whether b is the reversal partner of a. Both tokens must be
// stored.
func (s *Store) Compare(ctx context.Context, a, b domain.IdentityToken) (_ Comparison, err error) {
	ctx, span := tracer.Start(ctx, "store.Compare",
		attribute.String("first", a.String()),
		attribute.String("second", b.String()))
	defer func() { tracer.End(span, err) }()

	first, second := s.Proxy(a), s.Proxy(b)
	equal, err := first.Equal(ctx, second)
	if err != nil {
		return Comparison{}, err
	}
	if equal {
		return Comparison{Equal: true}, nil
	}
	subject, err := first.Subject(ctx)
	if err != nil {
		return Comparison{}, err
	}
	partner, err := subject.Reversed(ctx)
	if err != nil {
		return Comparison{}, err
	}
	partners, err := partner.Equal(ctx, second)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Partners: partners}, nil
}

// Info describes a stored record without materializing it.
type Info struct {
	ID         string   `json:"id" yaml:"id"`
	Type       string   `json:"type" yaml:"type"`
	Reversed   bool     `json:"reversed" yaml:"reversed"`
	Partner    string   `json:"partner,omitempty" yaml:"partner,omitempty"`
	Topology   string   `json:"topology,omitempty" yaml:"topology,omitempty"`
	Mirrored   bool     `json:"mirrored" yaml:"mirrored"`
	StoredAt   int64    `json:"stored_at" yaml:"stored_at"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// List describes every stored snapshot in token order, which is also
// creation order.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	var (
		out     []Info
		scanErr error
	)
	err := s.kv.Scan(ctx, []byte(snapshotPrefix), func(key, value []byte) bool {
		rec, err := decodeSnapshotRecord(value)
		if err != nil {
			scanErr = err
			return false
		}
		info := Info{
			ID:       strings.TrimPrefix(string(key), snapshotPrefix),
			Type:     rec.Type,
			Reversed: rec.Reversed,
			Partner:  rec.Partner,
			Topology: rec.Topology,
			Mirrored: rec.MirrorOf != "",
			StoredAt: rec.StoredAt,
		}
		for name := range rec.Attributes {
			info.Attributes = append(info.Attributes, name)
		}
		out = append(out, info)
		return true
	})
	if err == nil {
		err = scanErr
	}
	if err != nil {
		return nil, err
	}
	for i := range out {
		slices.Sort(out[i].Attributes)
	}
	return out, nil
}

// Count returns the number of stored snapshot records.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.kv.Scan(ctx, []byte(snapshotPrefix), func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// Cached returns the number of snapshots held in the identity cache.
func (s *Store) Cached() int {
	return s.cache.Count()
}

// Backup writes a dump of the underlying engine to w.
func (s *Store) Backup(ctx context.Context, w io.Writer) (_ uint64, err error) {
	ctx, span := tracer.Start(ctx, "store.Backup")
	defer func() { tracer.End(span, err) }()

	return s.kv.Backup(ctx, w)
}

// Restore replaces all stored data with a dump and drops the caches.
// Snapshots obtained before Restore stay valid but are no longer tracked.
func (s *Store) Restore(ctx context.Context, r io.Reader) (err error) {
	ctx, span := tracer.Start(ctx, "store.Restore")
	defer func() { tracer.End(span, err) }()

	if err := s.kv.Restore(ctx, r); err != nil {
		return err
	}
	s.cache.Clear()
	s.topologies.Clear()
	s.metrics.SetCachedSnapshots(0)
	return nil
}

// GC runs engine garbage collection.
func (s *Store) GC(ctx context.Context) (uint64, error) {
	return s.kv.GC(ctx)
}

// Stats returns engine statistics.
func (s *Store) Stats(ctx context.Context) (*KVStats, error) {
	return s.kv.Stats(ctx)
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	s.cache.Clear()
	return s.kv.Close()
}
