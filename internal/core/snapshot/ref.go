package snapshot

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// Ref is a reference to a snapshot: either the materialized *Snapshot or
// an unloaded *Proxy. No other implementations exist.
type Ref interface {
	// Subject returns the materialized snapshot.
	Subject(ctx context.Context) (*Snapshot, error)

	// Equal compares by snapshot identity, resolving proxies as needed.
	Equal(ctx context.Context, other Ref) (bool, error)

	sealed()
}

// Resolver materializes the snapshot stored under a token. Resolving the
// same token twice must return the same instance.
type Resolver interface {
	Resolve(ctx context.Context, tok domain.IdentityToken) (*Snapshot, error)
}

// Persistence is the storage collaborator of the core. The core never
// initiates storage; it only resolves the proxies it is handed.
type Persistence interface {
	Resolver
	AssignIdentity(ctx context.Context, s *Snapshot) (domain.IdentityToken, error)
}

// Subject returns s. A materialized snapshot is its own subject.
func (s *Snapshot) Subject(context.Context) (*Snapshot, error) {
	if s == nil {
		return nil, domain.ErrUnresolvableProxy.WithDetails("nil snapshot")
	}
	return s, nil
}

func (*Snapshot) sealed() {}

// Proxy is a placeholder for a stored snapshot that has not been loaded.
// It starts Unloaded(token) and moves to Loaded(snapshot) on the first
// successful Subject call.
type Proxy struct {
	token    domain.IdentityToken
	resolver Resolver
	subject  atomic.Pointer[Snapshot]
}

// NewProxy creates an unloaded placeholder for tok.
func NewProxy(tok domain.IdentityToken, resolver Resolver) *Proxy {
	return &Proxy{token: tok, resolver: resolver}
}

// Token returns the identity token the proxy stands for.
func (p *Proxy) Token() domain.IdentityToken {
	return p.token
}

// Loaded reports whether the subject has been materialized.
func (p *Proxy) Loaded() bool {
	return p.subject.Load() != nil
}

// Subject materializes the placeholder through its resolver.
func (p *Proxy) Subject(ctx context.Context) (*Snapshot, error) {
	if s := p.subject.Load(); s != nil {
		return s, nil
	}
	if p.resolver == nil {
		return nil, domain.ErrUnresolvableProxy.WithDetailsf("%s: no resolver", p.token)
	}

	s, err := p.resolver.Resolve(ctx, p.token)
	if err != nil {
		return nil, domain.ErrUnresolvableProxy.WithDetails(p.token.String()).WithCause(err)
	}
	if s == nil {
		return nil, domain.ErrUnresolvableProxy.WithDetailsf("%s: resolver returned nothing", p.token)
	}
	if tok, ok := s.Identity(); !ok || tok != p.token {
		return nil, domain.ErrUnresolvableProxy.WithDetailsf("%s: resolved snapshot has identity %q", p.token, tok)
	}

	if p.subject.CompareAndSwap(nil, s) {
		return s, nil
	}
	return p.subject.Load(), nil
}

// Equal resolves the proxy and compares its subject with other.
func (p *Proxy) Equal(ctx context.Context, other Ref) (bool, error) {
	if o, ok := other.(*Proxy); ok && o == p {
		return true, nil
	}
	s, err := p.Subject(ctx)
	if err != nil {
		return false, err
	}
	return s.Equal(ctx, other)
}

func (*Proxy) sealed() {}

// IsProxy reports whether r is an unmaterialized placeholder type.
func IsProxy(r Ref) bool {
	_, ok := r.(*Proxy)
	return ok
}

// ResolveSubject returns the materialized snapshot behind r.
func ResolveSubject(ctx context.Context, r Ref) (*Snapshot, error) {
	if r == nil {
		return nil, domain.ErrMissingArgument.WithDetails("nil reference")
	}
	return r.Subject(ctx)
}
