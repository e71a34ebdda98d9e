package snapshot

import (
	"slices"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// Type is a concrete snapshot type produced by Compose. The zero Type is
// the abstract core and cannot produce instances.
type Type struct {
	name        string
	caps        []*Capability
	attrs       []Attribute
	index       map[string]int // attribute name -> position in attrs
	slots       map[string]int // stored attribute name -> slot
	owner       map[string]string
	fingerprint uint64
}

// Compose merges an ordered, non-empty capability list into a concrete type.
func Compose(name string, caps ...*Capability) (*Type, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrMissingArgument.WithDetails("type name is required")
	}
	if len(caps) == 0 {
		return nil, domain.ErrInvalidArgument.WithDetailsf("type %q: at least one capability is required", name)
	}

	t := &Type{
		name:  name,
		caps:  slices.Clone(caps),
		index: make(map[string]int),
		slots: make(map[string]int),
		owner: make(map[string]string),
	}

	for _, c := range caps {
		if c == nil || c.Name == "" {
			return nil, domain.ErrInvalidArgument.WithDetailsf("type %q: capability without a name", name)
		}
		for _, a := range c.Attributes {
			if a.Name == "" {
				return nil, domain.ErrInvalidArgument.WithDetailsf("capability %q: attribute without a name", c.Name)
			}
			if prev, ok := t.owner[a.Name]; ok {
				return nil, domain.ErrCompositionConflict.WithDetailsf(
					"type %q: attribute %q declared by %q and %q", name, a.Name, prev, c.Name)
			}
			if a.Derived && a.Get == nil {
				return nil, domain.ErrInvalidArgument.WithDetailsf(
					"capability %q: derived attribute %q needs a read hook", c.Name, a.Name)
			}
			if !a.Derived {
				if a.Codec == nil {
					a.Codec = JSONCodec[any]{}
				}
				t.slots[a.Name] = len(t.slots)
			}
			t.owner[a.Name] = c.Name
			t.index[a.Name] = len(t.attrs)
			t.attrs = append(t.attrs, a)
		}
	}

	for _, c := range caps {
		for _, req := range c.Requires {
			if _, ok := t.owner[req]; !ok {
				return nil, domain.ErrMissingCapability.WithDetailsf(
					"type %q: capability %q requires attribute %q", name, c.Name, req)
			}
		}
	}

	t.fingerprint = t.computeFingerprint()
	return t, nil
}

// composed reports whether t came out of Compose.
func (t *Type) composed() bool {
	return t != nil && t.index != nil
}

func (t *Type) computeFingerprint() uint64 {
	h := murmur3.New64()
	for _, name := range t.AttributeNames() {
		a := t.attrs[t.index[name]]
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(a.Kind.String()))
		if a.Derived {
			h.Write([]byte{'d'})
		}
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Name returns the registered type name.
func (t *Type) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Capabilities returns the capability list in composition order.
func (t *Type) Capabilities() []*Capability {
	if !t.composed() {
		return nil
	}
	return slices.Clone(t.caps)
}

// CapabilityNames returns the capability names in composition order.
func (t *Type) CapabilityNames() []string {
	if !t.composed() {
		return nil
	}
	names := make([]string, len(t.caps))
	for i, c := range t.caps {
		names[i] = c.Name
	}
	return names
}

// AttributeNames returns every attribute name, sorted.
func (t *Type) AttributeNames() []string {
	if !t.composed() {
		return nil
	}
	names := make([]string, 0, len(t.attrs))
	for _, a := range t.attrs {
		names = append(names, a.Name)
	}
	slices.Sort(names)
	return names
}

// Attribute returns the declaration of the named attribute.
func (t *Type) Attribute(name string) (Attribute, bool) {
	if !t.composed() {
		return Attribute{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return Attribute{}, false
	}
	return t.attrs[i], true
}

// StoredAttributes returns the attributes that own a slot, in slot order.
func (t *Type) StoredAttributes() []Attribute {
	if !t.composed() {
		return nil
	}
	out := make([]Attribute, 0, len(t.slots))
	for _, a := range t.attrs {
		if !a.Derived {
			out = append(out, a)
		}
	}
	return out
}

// Has reports whether the type declares the attribute.
func (t *Type) Has(name string) bool {
	_, ok := t.Attribute(name)
	return ok
}

// Owner returns the name of the capability that declared the attribute.
func (t *Type) Owner(name string) string {
	if !t.composed() {
		return ""
	}
	return t.owner[name]
}

// Fingerprint hashes the attribute set. It does not depend on capability order.
func (t *Type) Fingerprint() uint64 {
	if !t.composed() {
		return 0
	}
	return t.fingerprint
}

// SameShape reports whether both types declare the same attribute set.
func (t *Type) SameShape(other *Type) bool {
	if !t.composed() || !other.composed() {
		return false
	}
	return t.fingerprint == other.fingerprint &&
		slices.Equal(t.AttributeNames(), other.AttributeNames())
}

// New builds an instance of the composed type. Unknown or derived params
// are rejected before any initializer runs.
func (t *Type) New(topology *domain.Topology, params Params) (*Snapshot, error) {
	if !t.composed() {
		return nil, domain.ErrAbstractInstantiation
	}

	for name := range params {
		a, ok := t.Attribute(name)
		if !ok {
			return nil, domain.ErrUnknownAttribute.WithDetailsf("type %q has no attribute %q", t.name, name)
		}
		if a.Derived {
			return nil, domain.ErrDerivedAttribute.WithDetailsf("attribute %q", name)
		}
	}

	s := &Snapshot{
		typ:      t,
		topology: topology,
		slots:    make([]any, len(t.slots)),
	}
	for _, c := range t.caps {
		initFn := c.Init
		if initFn == nil {
			initFn = c.defaultInit
		}
		if err := initFn(s, params); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Blank builds an instance with every slot unset. The persistence layer
// uses it before decoding stored values.
func (t *Type) Blank(topology *domain.Topology, reversed bool) (*Snapshot, error) {
	if !t.composed() {
		return nil, domain.ErrAbstractInstantiation
	}
	return &Snapshot{
		typ:          t,
		topology:     topology,
		slots:        make([]any, len(t.slots)),
		reversedFlag: reversed,
	}, nil
}
