package snapshot

import (
	"context"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// link is the reversal pointer. It holds either a materialized partner
// or a proxy installed by the persistence layer.
type link struct {
	ref Ref
}

// Reversed returns the time-reversed partner, creating it on first read.
// The partner of the partner is the receiver itself.
func (s *Snapshot) Reversed(ctx context.Context) (*Snapshot, error) {
	if s == nil || !s.typ.composed() {
		return nil, domain.ErrAbstractInstantiation
	}

	for {
		l := s.rev.Load()
		if l == nil {
			candidate, err := s.createReversed()
			if err != nil {
				return nil, err
			}
			if s.rev.CompareAndSwap(nil, &link{ref: candidate}) {
				return candidate, nil
			}
			// Lost the race; the winner's partner is in s.rev now.
			continue
		}

		if partner, ok := l.ref.(*Snapshot); ok {
			return partner, nil
		}

		partner, err := l.ref.Subject(ctx)
		if err != nil {
			return nil, err
		}
		if s.rev.CompareAndSwap(l, &link{ref: partner}) {
			partner.linkBack(s)
			return partner, nil
		}
	}
}

// createReversed copies the snapshot, flips the flag and points the copy
// back at the receiver.
func (s *Snapshot) createReversed() (*Snapshot, error) {
	r, err := s.Copy()
	if err != nil {
		return nil, err
	}
	r.reversedFlag = !s.reversedFlag
	r.rev.Store(&link{ref: s})
	return r, nil
}

// linkBack points s at partner if s is unlinked or only holds a proxy
// for partner.
func (s *Snapshot) linkBack(partner *Snapshot) {
	for {
		l := s.rev.Load()
		if l != nil {
			proxy, ok := l.ref.(*Proxy)
			if !ok {
				return
			}
			tok, stored := partner.Identity()
			if !stored || proxy.Token() != tok {
				return
			}
		}
		if s.rev.CompareAndSwap(l, &link{ref: partner}) {
			return
		}
	}
}

// HasReversed reports whether the reversal link is set, loaded or not.
func (s *Snapshot) HasReversed() bool {
	return s.rev.Load() != nil
}

// ReversedRef returns the current reversal link without resolving it.
func (s *Snapshot) ReversedRef() (Ref, bool) {
	l := s.rev.Load()
	if l == nil {
		return nil, false
	}
	return l.ref, true
}

// LinkReversed installs a partner reference on an unlinked snapshot.
// The persistence layer uses it to attach a placeholder for the stored
// partner. Linking a materialized partner links both halves.
func (s *Snapshot) LinkReversed(partner Ref) error {
	if s == nil || !s.typ.composed() {
		return domain.ErrAbstractInstantiation
	}
	if isNilRef(partner) {
		return domain.ErrMissingArgument.WithDetails("reversal partner is required")
	}
	if p, ok := partner.(*Snapshot); ok && p == s {
		return domain.ErrInvalidArgument.WithDetails("snapshot cannot be its own reversal partner")
	}
	if !s.rev.CompareAndSwap(nil, &link{ref: partner}) {
		if cur, _ := s.ReversedRef(); cur == partner {
			return nil
		}
		return domain.ErrInvalidArgument.WithDetails("reversal link already set")
	}
	if p, ok := partner.(*Snapshot); ok {
		p.linkBack(s)
	}
	return nil
}

// isNilRef reports whether r is nil or a typed nil pointer.
func isNilRef(r Ref) bool {
	switch v := r.(type) {
	case nil:
		return true
	case *Snapshot:
		return v == nil
	case *Proxy:
		return v == nil
	}
	return false
}
