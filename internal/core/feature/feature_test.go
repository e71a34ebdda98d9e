package feature

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

func registry(t *testing.T) *snapshot.Registry {
	t.Helper()
	reg := snapshot.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func lookup(t *testing.T, reg *snapshot.Registry, name string) *snapshot.Type {
	t.Helper()
	typ, err := reg.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", name, err)
	}
	return typ
}

func TestRegister_Flavors(t *testing.T) {
	reg := registry(t)

	tests := []struct {
		name  string
		attrs []string
	}{
		{ToySnapshot, []string{"coordinates", "n_atoms", "n_spatial", "velocities", "xyz"}},
		{MDSnapshot, []string{"box_vectors", "coordinates", "n_atoms", "n_spatial", "velocities", "xyz"}},
		{Snapshot, []string{"box_vectors", "configuration", "coordinates", "momentum", "n_atoms", "n_spatial", "velocities", "xyz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := lookup(t, reg, tt.name)
			if got := typ.AttributeNames(); !slices.Equal(got, tt.attrs) {
				t.Errorf("AttributeNames() = %v, want %v", got, tt.attrs)
			}
		})
	}

	if err := Register(reg); err != nil {
		t.Errorf("registering the flavors twice should be idempotent, got %v", err)
	}
}

func TestVelocities_ReversedOnRead(t *testing.T) {
	ctx := context.Background()
	typ := lookup(t, registry(t), MDSnapshot)
	topo, _ := domain.NewTopology("pair", 2)

	vel := Vectors{{1, 2, 3}, {-4, 5, -6}}
	s, err := typ.New(topo, snapshot.Params{
		AttrCoordinates: Vectors{{0, 0, 0}, {1, 1, 1}},
		AttrVelocities:  vel,
		AttrBoxVectors:  Cubic(2.5),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r, err := s.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, err := VelocitiesOf(r)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, Vectors{{-1, -2, -3}, {4, -5, 6}}) {
		t.Errorf("reversed velocities = %v", got)
	}
	fwd, _ := VelocitiesOf(s)
	if !slices.Equal(fwd, vel) {
		t.Errorf("forward velocities = %v, want %v", fwd, vel)
	}
	if !slices.Equal(vel, Vectors{{1, 2, 3}, {-4, 5, -6}}) {
		t.Error("stored velocities were mutated")
	}

	box, err := BoxVectorsOf(r)
	if err != nil || box == nil || *box != *Cubic(2.5) {
		t.Errorf("BoxVectorsOf() = %v, %v", box, err)
	}

	xyz, err := XYZOf(r)
	if err != nil {
		t.Fatal(err)
	}
	coords, _ := CoordinatesOf(s)
	if &xyz[0] != &coords[0] {
		t.Error("xyz should alias the coordinate buffer")
	}

	if n, err := NAtomsOf(s); err != nil || n != 2 {
		t.Errorf("NAtomsOf() = %d, %v", n, err)
	}
}

func TestSnapshotFlavor_Bundles(t *testing.T) {
	ctx := context.Background()
	typ := lookup(t, registry(t), Snapshot)
	topo, _ := domain.NewTopology("single", 1)

	ke := 0.75
	cfg := &ConfigurationValue{Coordinates: Vectors{{1, 0, 0}}, BoxVectors: Cubic(3)}
	mom := &MomentumValue{Velocities: Vectors{{0.5, 0, -0.5}}, KineticEnergy: &ke}

	s, err := typ.New(topo, snapshot.Params{AttrConfiguration: cfg, AttrMomentum: mom})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r, err := s.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}

	rc, _ := ConfigurationOf(r)
	if rc != cfg {
		t.Error("reversed snapshot should reference the same configuration")
	}
	coords, _ := CoordinatesOf(r)
	if &coords[0] != &cfg.Coordinates[0] {
		t.Error("derived coordinates should reference the configuration buffer")
	}

	rm, err := MomentumOf(r)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rm.Velocities, Vectors{{-0.5, 0, 0.5}}) {
		t.Errorf("reversed momentum velocities = %v", rm.Velocities)
	}
	if rm.KineticEnergy == nil || *rm.KineticEnergy != ke {
		t.Error("kinetic energy should survive reversal")
	}
	rv, _ := VelocitiesOf(r)
	if !slices.Equal(rv, rm.Velocities) {
		t.Errorf("derived velocities = %v, want %v", rv, rm.Velocities)
	}

	fm, _ := MomentumOf(s)
	if fm != mom {
		t.Error("forward momentum should be the stored reference")
	}
}

func TestInit_Validation(t *testing.T) {
	reg := registry(t)
	toy := lookup(t, reg, ToySnapshot)
	full := lookup(t, reg, Snapshot)
	topo, _ := domain.NewTopology("three", 3)

	tests := []struct {
		name   string
		typ    *snapshot.Type
		params snapshot.Params
		want   error
	}{
		{"matching count", toy, snapshot.Params{AttrCoordinates: Zeros(3)}, nil},
		{"count mismatch", toy, snapshot.Params{AttrVelocities: Zeros(2)}, domain.ErrInvalidArgument},
		{"wrong vector type", toy, snapshot.Params{AttrCoordinates: [][3]float64{{0, 0, 0}}}, domain.ErrAttributeType},
		{"box on toy", toy, snapshot.Params{AttrBoxVectors: Cubic(1)}, domain.ErrUnknownAttribute},
		{"bundle count mismatch", full, snapshot.Params{AttrMomentum: &MomentumValue{Velocities: Zeros(1)}}, domain.ErrInvalidArgument},
		{"nil bundle", full, snapshot.Params{AttrConfiguration: (*ConfigurationValue)(nil)}, nil},
		{"nil momentum", full, snapshot.Params{AttrMomentum: (*MomentumValue)(nil)}, nil},
		{"derived coordinates", full, snapshot.Params{AttrCoordinates: Zeros(3)}, domain.ErrDerivedAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.New(topo, tt.params)
			if tt.want == nil {
				if err != nil {
					t.Errorf("New() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMomentum_NilBundleReversed(t *testing.T) {
	ctx := context.Background()
	typ := lookup(t, registry(t), Snapshot)
	s, err := typ.New(nil, snapshot.Params{AttrMomentum: (*MomentumValue)(nil)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if raw, _ := s.Raw(AttrMomentum); raw != nil {
		t.Errorf("Raw(momentum) = %#v, want nil", raw)
	}
	r, err := s.Reversed(ctx)
	if err != nil {
		t.Fatal(err)
	}

	for _, snap := range []*snapshot.Snapshot{s, r} {
		if m, err := MomentumOf(snap); err != nil || m != nil {
			t.Errorf("MomentumOf(reversed=%v) = %v, %v", snap.IsReversed(), m, err)
		}
		if v, err := VelocitiesOf(snap); err != nil || v != nil {
			t.Errorf("VelocitiesOf(reversed=%v) = %v, %v", snap.IsReversed(), v, err)
		}
	}
}

func TestInit_SpatialDims(t *testing.T) {
	reg := registry(t)
	md := lookup(t, reg, MDSnapshot)
	full := lookup(t, reg, Snapshot)
	flat := &domain.Topology{Name: "flat", NAtoms: 1, NSpatial: 2}

	tests := []struct {
		name   string
		typ    *snapshot.Type
		params snapshot.Params
	}{
		{"coordinates", md, snapshot.Params{AttrCoordinates: Zeros(1)}},
		{"box vectors", md, snapshot.Params{AttrBoxVectors: Cubic(1)}},
		{"configuration box", full, snapshot.Params{AttrConfiguration: &ConfigurationValue{BoxVectors: Cubic(1)}}},
		{"momentum", full, snapshot.Params{AttrMomentum: &MomentumValue{Velocities: Zeros(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.typ.New(flat, tt.params); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	if _, err := md.New(flat, nil); err != nil {
		t.Errorf("New() without vectors error = %v", err)
	}
}

func TestVectors_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Vectors
		wantErr bool
	}{
		{"exact", `[[1, 2, 3], [4, 5, 6]]`, Vectors{{1, 2, 3}, {4, 5, 6}}, false},
		{"empty", `[]`, Vectors{}, false},
		{"extra components", `[[1, 2, 3, 4, 5], [7, 8, 9]]`, nil, true},
		{"missing components", `[[1, 2, 3], [7]]`, nil, true},
		{"not numbers", `[["a", "b", "c"]]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Vectors
			err := json.Unmarshal([]byte(tt.data), &got)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Unmarshal() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBox_UnmarshalJSON(t *testing.T) {
	var b Box
	if err := json.Unmarshal([]byte(`[[2, 0, 0], [0, 2, 0], [0, 0, 2]]`), &b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if b != *Cubic(2) {
		t.Errorf("Unmarshal() = %v", b)
	}

	for _, data := range []string{
		`[[1, 0, 0], [0, 1, 0]]`,
		`[[1, 0, 0], [0, 1, 0], [0, 0, 1], [1, 1, 1]]`,
		`[[1, 0, 0], [0, 1, 0], [0, 0]]`,
	} {
		var b Box
		if err := json.Unmarshal([]byte(data), &b); err == nil {
			t.Errorf("Unmarshal(%s) should fail", data)
		}
	}
}

func TestReaders_WrongType(t *testing.T) {
	typ, err := snapshot.Compose("Odd", &snapshot.Capability{
		Name: "odd",
		Attributes: []snapshot.Attribute{
			{Name: AttrNAtoms, Kind: snapshot.KindInteger, Codec: snapshot.JSONCodec[string]{}},
			{Name: AttrMomentum, Kind: snapshot.KindBundle, Codec: snapshot.JSONCodec[string]{}},
			{Name: AttrConfiguration, Kind: snapshot.KindBundle, Codec: snapshot.JSONCodec[string]{}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := typ.New(nil, snapshot.Params{AttrNAtoms: "two", AttrMomentum: "m", AttrConfiguration: "c"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NAtomsOf(s); !errors.Is(err, domain.ErrAttributeType) {
		t.Errorf("NAtomsOf() error = %v, want ErrAttributeType", err)
	}
	if _, err := MomentumOf(s); !errors.Is(err, domain.ErrAttributeType) {
		t.Errorf("MomentumOf() error = %v, want ErrAttributeType", err)
	}
	if _, err := ConfigurationOf(s); !errors.Is(err, domain.ErrAttributeType) {
		t.Errorf("ConfigurationOf() error = %v, want ErrAttributeType", err)
	}
}

func TestReaders_EmptySnapshot(t *testing.T) {
	typ := lookup(t, registry(t), Snapshot)
	s, err := typ.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if v, err := CoordinatesOf(s); err != nil || v != nil {
		t.Errorf("CoordinatesOf() = %v, %v", v, err)
	}
	if b, err := BoxVectorsOf(s); err != nil || b != nil {
		t.Errorf("BoxVectorsOf() = %v, %v", b, err)
	}
	if m, err := MomentumOf(s); err != nil || m != nil {
		t.Errorf("MomentumOf() = %v, %v", m, err)
	}
	if n, err := NAtomsOf(s); err != nil || n != 0 {
		t.Errorf("NAtomsOf() = %d, %v", n, err)
	}
	if n, err := s.Get(AttrNSpatial); err != nil || n != domain.DefaultSpatialDims {
		t.Errorf("n_spatial = %v, %v", n, err)
	}
}

func TestVectors_Negated(t *testing.T) {
	if Vectors(nil).Negated() != nil {
		t.Error("Negated() of nil should be nil")
	}
	v := Vectors{{1, -2, 0}}
	n := v.Negated()
	if n[0] != (Vec3{-1, 2, 0}) {
		t.Errorf("Negated() = %v", n)
	}
	if &n[0] == &v[0] {
		t.Error("Negated() should allocate a new buffer")
	}
}
