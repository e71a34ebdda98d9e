package snapshot

import (
	"encoding/json"
	"fmt"
)

// Kind is the semantic type of an attribute.
type Kind int

const (
	KindAny Kind = iota
	KindVectors
	KindBox
	KindScalar
	KindInteger
	KindBundle
)

// String returns the kind name used in fingerprints and listings.
func (k Kind) String() string {
	switch k {
	case KindVectors:
		return "vectors"
	case KindBox:
		return "box"
	case KindScalar:
		return "scalar"
	case KindInteger:
		return "integer"
	case KindBundle:
		return "bundle"
	default:
		return "any"
	}
}

// Codec serializes the value of one stored attribute.
type Codec interface {
	// Accepts reports whether v has the Go type the attribute stores.
	Accepts(v any) bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec stores values of type T as JSON.
type JSONCodec[T any] struct{}

// Accepts implements Codec.
func (JSONCodec[T]) Accepts(v any) bool {
	_, ok := v.(T)
	return ok
}

// Marshal implements Codec.
func (c JSONCodec[T]) Marshal(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	if !c.Accepts(v) {
		var zero T
		return nil, fmt.Errorf("codec: got %T, want %T", v, zero)
	}
	return json.Marshal(v)
}

// Unmarshal implements Codec. JSON null decodes to a nil value.
func (JSONCodec[T]) Unmarshal(data []byte) (any, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Attribute declares one named attribute of a capability.
type Attribute struct {
	Name string
	Kind Kind

	// Derived attributes have no storage slot; Get computes them.
	Derived bool

	// Get is the read hook. Nil means "return the stored reference".
	// Orientation-dependent attributes honor IsReversed here.
	Get func(s *Snapshot) (any, error)

	// Codec serializes stored attributes. Nil stores any JSON value.
	Codec Codec
}

// Params carries construction values keyed by stored attribute name.
type Params map[string]any

// Capability is a named bundle of attribute declarations plus the
// initialization and copy logic that goes with them.
type Capability struct {
	Name       string
	Attributes []Attribute

	// Requires names attributes some capability of the same composition
	// must declare.
	Requires []string

	// Init initializes the capability's slots from construction params.
	// Nil copies params[attr.Name] into each stored attribute.
	Init func(s *Snapshot, p Params) error

	// Copy runs after the core copied every slot reference.
	Copy func(dst, src *Snapshot)
}

// defaultInit stores each declared parameter as given.
func (c *Capability) defaultInit(s *Snapshot, p Params) error {
	for _, a := range c.Attributes {
		if a.Derived {
			continue
		}
		if v, ok := p[a.Name]; ok {
			if err := s.Set(a.Name, v); err != nil {
				return err
			}
		}
	}
	return nil
}
