package snapshot

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// Core is the protocol every composed snapshot type provides.
type Core interface {
	Copy() (*Snapshot, error)
	Reversed(ctx context.Context) (*Snapshot, error)
	Equal(ctx context.Context, other Ref) (bool, error)
}

var _ Core = (*Snapshot)(nil)

// Snapshot is one instant of system state. Instances come from
// (*Type).New, Copy, or Reversed; the zero value is the abstract core
// and fails every protocol operation with ErrAbstractInstantiation.
type Snapshot struct {
	typ      *Type
	topology *domain.Topology
	slots    []any

	// reversedFlag marks the time-reversed half of a pair.
	reversedFlag bool

	rev      atomic.Pointer[link]
	identity atomic.Pointer[domain.IdentityToken]
}

// Type returns the composed type of the snapshot.
func (s *Snapshot) Type() *Type {
	return s.typ
}

// Topology returns the shared topology reference, or nil.
func (s *Snapshot) Topology() *domain.Topology {
	return s.topology
}

// IsReversed reports whether this is the time-reversed half of its pair.
func (s *Snapshot) IsReversed() bool {
	return s.reversedFlag
}

// Identity returns the persistence-assigned token, if any.
func (s *Snapshot) Identity() (domain.IdentityToken, bool) {
	if tok := s.identity.Load(); tok != nil {
		return *tok, true
	}
	return domain.IdentityToken{}, false
}

// AssignIdentity records the persistence token. It succeeds once.
func (s *Snapshot) AssignIdentity(tok domain.IdentityToken) error {
	if tok.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("zero identity token")
	}
	if !s.identity.CompareAndSwap(nil, &tok) {
		cur, _ := s.Identity()
		if cur == tok {
			return nil
		}
		return domain.ErrIdentityAssigned.WithDetails(cur.String())
	}
	return nil
}

// Get reads an attribute through its read hook.
func (s *Snapshot) Get(name string) (any, error) {
	if !s.typ.composed() {
		return nil, domain.ErrAbstractInstantiation
	}
	a, ok := s.typ.Attribute(name)
	if !ok {
		return nil, domain.ErrUnknownAttribute.WithDetailsf("type %q has no attribute %q", s.typ.name, name)
	}
	if a.Get != nil {
		return a.Get(s)
	}
	return s.slots[s.typ.slots[name]], nil
}

// Raw returns the stored reference of an attribute, bypassing read hooks.
func (s *Snapshot) Raw(name string) (any, error) {
	if !s.typ.composed() {
		return nil, domain.ErrAbstractInstantiation
	}
	i, ok := s.typ.slots[name]
	if !ok {
		if s.typ.Has(name) {
			return nil, domain.ErrDerivedAttribute.WithDetailsf("attribute %q", name)
		}
		return nil, domain.ErrUnknownAttribute.WithDetailsf("type %q has no attribute %q", s.typ.name, name)
	}
	return s.slots[i], nil
}

// Set stores a reference in an attribute slot. It is meant for
// capability initializers and decoders, before the snapshot is shared.
func (s *Snapshot) Set(name string, v any) error {
	if !s.typ.composed() {
		return domain.ErrAbstractInstantiation
	}
	a, ok := s.typ.Attribute(name)
	if !ok {
		return domain.ErrUnknownAttribute.WithDetailsf("type %q has no attribute %q", s.typ.name, name)
	}
	if a.Derived {
		return domain.ErrDerivedAttribute.WithDetailsf("attribute %q", name)
	}
	if v != nil && !a.Codec.Accepts(v) {
		return domain.ErrAttributeType.WithDetailsf("attribute %q: unexpected %T", name, v)
	}
	s.slots[s.typ.slots[name]] = v
	return nil
}

// Copy returns a shallow copy: a new identity, no reversal link, the same
// topology pointer, and the same attribute references. The copy keeps
// the reversal flag because it describes the same physical state.
func (s *Snapshot) Copy() (*Snapshot, error) {
	if s == nil || !s.typ.composed() {
		return nil, domain.ErrAbstractInstantiation
	}
	c := &Snapshot{
		typ:          s.typ,
		topology:     s.topology,
		slots:        slices.Clone(s.slots),
		reversedFlag: s.reversedFlag,
	}
	for _, capability := range s.typ.caps {
		if capability.Copy != nil {
			capability.Copy(c, s)
		}
	}
	return c, nil
}
