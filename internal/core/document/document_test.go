package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/feature"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

const mdDoc = `
type: MDSnapshot
topology:
  name: dimer
  n_atoms: 2
attributes:
  coordinates: [[0, 0, 0], [1.5, 0, 0]]
  velocities: [[0.5, 0, 0], [-0.5, 0, 0]]
`

func registry(t *testing.T) *snapshot.Registry {
	t.Helper()
	reg := snapshot.NewRegistry()
	if err := feature.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func TestParseAndBuild(t *testing.T) {
	d, err := Parse([]byte(mdDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	snap, err := d.Build(registry(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if snap.Type().Name() != feature.MDSnapshot {
		t.Errorf("type = %q", snap.Type().Name())
	}
	if topo := snap.Topology(); topo == nil || topo.Name != "dimer" || topo.NSpatial != domain.DefaultSpatialDims {
		t.Errorf("topology = %+v", topo)
	}
	coords, err := feature.CoordinatesOf(snap)
	if err != nil {
		t.Fatal(err)
	}
	if want := (feature.Vectors{{0, 0, 0}, {1.5, 0, 0}}); !reflect.DeepEqual(coords, want) {
		t.Errorf("coordinates = %v, want %v", coords, want)
	}
}

func TestParse_JSON(t *testing.T) {
	d, err := Parse([]byte(`{"type": "ToySnapshot", "attributes": {"coordinates": [[1, 2, 3]]}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.Type != feature.ToySnapshot || !reflect.DeepEqual(d.AttributeNames(), []string{"coordinates"}) {
		t.Errorf("document = %+v", d)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"bad yaml", "type: [", domain.ErrInvalidArgument},
		{"missing type", "attributes: {}", domain.ErrMissingArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in)); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	reg := registry(t)
	tests := []struct {
		name string
		doc  Document
		want error
	}{
		{"unknown type", Document{Type: "Foreign"}, domain.ErrTypeNotFound},
		{"unknown attribute", Document{Type: feature.ToySnapshot, Attributes: map[string]any{"spin": 1}}, domain.ErrUnknownAttribute},
		{"derived attribute", Document{Type: feature.ToySnapshot, Attributes: map[string]any{"xyz": []any{}}}, domain.ErrDerivedAttribute},
		{"wrong shape", Document{Type: feature.ToySnapshot, Attributes: map[string]any{"coordinates": "nope"}}, domain.ErrAttributeType},
		{"bad topology", Document{Type: feature.ToySnapshot, Topology: &Topology{Name: "a b", NAtoms: 1}}, domain.ErrInvalidArgument},
		{
			"extra components",
			Document{
				Type:       feature.ToySnapshot,
				Topology:   &Topology{Name: "two", NAtoms: 2},
				Attributes: map[string]any{"coordinates": []any{[]any{1, 2, 3, 4, 5}, []any{7, 8, 9}}},
			},
			domain.ErrAttributeType,
		},
		{
			"missing components",
			Document{
				Type:       feature.ToySnapshot,
				Topology:   &Topology{Name: "two", NAtoms: 2},
				Attributes: map[string]any{"coordinates": []any{[]any{1, 2, 3}, []any{7}}},
			},
			domain.ErrAttributeType,
		},
		{
			"short box",
			Document{
				Type:       feature.MDSnapshot,
				Attributes: map[string]any{"box_vectors": []any{[]any{1, 0, 0}, []any{0, 1, 0}}},
			},
			domain.ErrAttributeType,
		},
		{
			"planar topology",
			Document{
				Type:       feature.ToySnapshot,
				Topology:   &Topology{Name: "flat", NAtoms: 1, NSpatial: 2},
				Attributes: map[string]any{"coordinates": []any{[]any{1, 2, 3}}},
			},
			domain.ErrInvalidArgument,
		},
		{
			"count mismatch",
			Document{
				Type:       feature.ToySnapshot,
				Topology:   &Topology{Name: "one", NAtoms: 1},
				Attributes: map[string]any{"coordinates": []any{[]any{0, 0, 0}, []any{1, 1, 1}}},
			},
			domain.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.doc.Build(reg); !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFromSnapshot_ReversedView(t *testing.T) {
	d, _ := Parse([]byte(mdDoc))
	snap, err := d.Build(registry(t))
	if err != nil {
		t.Fatal(err)
	}
	tok, _ := domain.NewIdentityToken()
	if err := snap.AssignIdentity(tok); err != nil {
		t.Fatal(err)
	}
	rev, err := snap.Reversed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	revTok, _ := domain.NewIdentityToken()
	if err := rev.AssignIdentity(revTok); err != nil {
		t.Fatal(err)
	}

	out, err := FromSnapshot(rev)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if !out.Reversed || out.ID != revTok.String() || out.Partner != tok.String() {
		t.Errorf("header = %+v", out)
	}
	want := []any{[]any{-0.5, 0.0, 0.0}, []any{0.5, 0.0, 0.0}}
	if got := out.Attributes["velocities"]; !reflect.DeepEqual(got, want) {
		t.Errorf("velocities = %v, want %v", got, want)
	}
	if _, ok := out.Attributes["box_vectors"]; ok {
		t.Error("unset attribute should be omitted")
	}
	if _, ok := out.Attributes["xyz"]; ok {
		t.Error("derived attribute should be omitted")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.yaml")
	if err := os.WriteFile(path, []byte(mdDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if d.Topology == nil || d.Topology.NAtoms != 2 {
		t.Errorf("topology = %+v", d.Topology)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ReadFile() should fail for a missing file")
	}
}
