// Package document converts between snapshots and the YAML or JSON
// documents snapctl reads and prints.
//
// A document names a registered type, an optional topology and the values
// of stored attributes:
//
//	type: MDSnapshot
//	topology: {name: dimer, n_atoms: 2}
//	attributes:
//	  coordinates: [[0, 0, 0], [1, 0, 0]]
//	  velocities: [[0.1, 0, 0], [0, 0, 0]]
//
// Attribute values are decoded by the attribute's own codec, so a
// document accepts exactly what the store would persist.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

// Document is the serializable form of a snapshot. ID, Reversed and
// Partner are filled when printing and ignored when building.
type Document struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Type       string         `json:"type" yaml:"type"`
	Reversed   bool           `json:"reversed,omitempty" yaml:"reversed,omitempty"`
	Partner    string         `json:"partner,omitempty" yaml:"partner,omitempty"`
	Topology   *Topology      `json:"topology,omitempty" yaml:"topology,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Topology is the document form of domain.Topology. A zero NSpatial
// means the default dimensionality.
type Topology struct {
	Name     string `json:"name" yaml:"name"`
	NAtoms   int    `json:"n_atoms" yaml:"n_atoms"`
	NSpatial int    `json:"n_spatial,omitempty" yaml:"n_spatial,omitempty"`
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, domain.ErrInvalidArgument.WithDetailsf("parse document: %v", err)
	}
	if d.Type == "" {
		return nil, domain.ErrMissingArgument.WithDetails("document type is required")
	}
	return &d, nil
}

// ReadFile parses the document stored at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Build instantiates the document's type from reg. Values go through the
// type's initializers, so the usual validation applies.
func (d *Document) Build(reg *snapshot.Registry) (*snapshot.Snapshot, error) {
	typ, err := reg.Lookup(d.Type)
	if err != nil {
		return nil, err
	}

	var topo *domain.Topology
	if d.Topology != nil {
		topo = &domain.Topology{Name: d.Topology.Name, NAtoms: d.Topology.NAtoms, NSpatial: d.Topology.NSpatial}
		if topo.NSpatial == 0 {
			topo.NSpatial = domain.DefaultSpatialDims
		}
		if err := topo.Validate(); err != nil {
			return nil, err
		}
	}

	params := make(snapshot.Params, len(d.Attributes))
	for name, raw := range d.Attributes {
		attr, ok := typ.Attribute(name)
		if !ok {
			return nil, domain.ErrUnknownAttribute.WithDetailsf("type %q has no attribute %q", d.Type, name)
		}
		if attr.Derived {
			return nil, domain.ErrDerivedAttribute.WithDetailsf("attribute %q", name)
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, domain.ErrAttributeType.WithDetailsf("attribute %q: %v", name, err)
		}
		v, err := attr.Codec.Unmarshal(data)
		if err != nil {
			return nil, domain.ErrAttributeType.WithDetailsf("attribute %q: %v", name, err)
		}
		params[name] = v
	}
	return typ.New(topo, params)
}

// FromSnapshot renders snap as a document. Values are read through the
// attribute read hooks, so a reversed snapshot shows its reversed view.
func FromSnapshot(snap *snapshot.Snapshot) (*Document, error) {
	typ := snap.Type()
	if typ == nil {
		return nil, domain.ErrAbstractInstantiation
	}
	d := &Document{
		Type:       typ.Name(),
		Reversed:   snap.IsReversed(),
		Attributes: make(map[string]any),
	}
	if tok, ok := snap.Identity(); ok {
		d.ID = tok.String()
	}
	if ref, ok := snap.ReversedRef(); ok {
		if tok, ok := tokenOf(ref); ok {
			d.Partner = tok.String()
		}
	}
	if t := snap.Topology(); t != nil {
		d.Topology = &Topology{Name: t.Name, NAtoms: t.NAtoms, NSpatial: t.NSpatial}
	}

	for _, attr := range typ.StoredAttributes() {
		v, err := snap.Get(attr.Name)
		if err != nil {
			return nil, err
		}
		if isNil(v) {
			continue
		}
		data, err := attr.Codec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		var plain any
		if err := json.Unmarshal(data, &plain); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		d.Attributes[attr.Name] = plain
	}
	return d, nil
}

// AttributeNames returns the document's attribute names, sorted.
func (d *Document) AttributeNames() []string {
	names := make([]string, 0, len(d.Attributes))
	for name := range d.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func tokenOf(ref snapshot.Ref) (domain.IdentityToken, bool) {
	switch r := ref.(type) {
	case *snapshot.Proxy:
		return r.Token(), true
	case *snapshot.Snapshot:
		return r.Identity()
	default:
		return domain.IdentityToken{}, false
	}
}

// isNil reports whether v is nil or a typed nil, which read hooks return
// for unset attributes.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
