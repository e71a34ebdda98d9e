package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

func TestEqual_Identity(t *testing.T) {
	ctx := context.Background()
	typ, topo := newToy(t)

	params := Params{"coordinates": []float64{1, 1, 1}}
	s1, _ := typ.New(topo, params)
	s2, _ := typ.New(topo, params)

	tests := []struct {
		name  string
		a     *Snapshot
		other Ref
		want  bool
	}{
		{"reflexive", s1, s1, true},
		{"identical values are not equal", s1, s2, false},
		{"nil ref", s1, nil, false},
		{"typed nil proxy", s1, (*Proxy)(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Equal(ctx, tt.other)
			if err != nil {
				t.Fatalf("Equal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqual_ThroughProxy(t *testing.T) {
	ctx := context.Background()
	resolver := newMapResolver()
	s := newToySnapshot(t)
	other := newToySnapshot(t)
	tok := resolver.store(s)
	resolver.store(other)

	p := NewProxy(tok, resolver)
	if p.Loaded() {
		t.Fatal("new proxy should be unloaded")
	}
	if !IsProxy(p) || IsProxy(s) {
		t.Error("IsProxy() misclassified a reference")
	}

	eq, err := s.Equal(ctx, p)
	if err != nil || !eq {
		t.Errorf("s.Equal(proxy(s)) = %v, %v; want true", eq, err)
	}
	eq, err = p.Equal(ctx, s)
	if err != nil || !eq {
		t.Errorf("proxy(s).Equal(s) = %v, %v; want true", eq, err)
	}
	eq, err = other.Equal(ctx, p)
	if err != nil || eq {
		t.Errorf("other.Equal(proxy(s)) = %v, %v; want false", eq, err)
	}
	eq, err = p.Equal(ctx, p)
	if err != nil || !eq {
		t.Errorf("proxy.Equal(proxy) = %v, %v; want true", eq, err)
	}
	if !p.Loaded() {
		t.Error("proxy should be loaded after resolution")
	}

	// A second proxy for the same token resolves to the same instance.
	p2 := NewProxy(tok, resolver)
	eq, err = p2.Equal(ctx, p)
	if err != nil || !eq {
		t.Errorf("proxy2.Equal(proxy) = %v, %v; want true", eq, err)
	}
}

func TestProxy_SubjectMemoized(t *testing.T) {
	ctx := context.Background()
	resolver := newMapResolver()
	s := newToySnapshot(t)
	p := NewProxy(resolver.store(s), resolver)

	for i := 0; i < 3; i++ {
		got, err := ResolveSubject(ctx, p)
		if err != nil {
			t.Fatalf("ResolveSubject() error = %v", err)
		}
		if got != s {
			t.Fatal("ResolveSubject() returned a different instance")
		}
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}

	got, err := ResolveSubject(ctx, s)
	if err != nil || got != s {
		t.Errorf("ResolveSubject(snapshot) = %v, %v", got, err)
	}
	if _, err := ResolveSubject(ctx, nil); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("ResolveSubject(nil) error = %v", err)
	}
}

func TestProxy_Unresolvable(t *testing.T) {
	ctx := context.Background()
	s := newToySnapshot(t)
	tok, _ := domain.NewIdentityToken()

	failing := newMapResolver()
	failing.err = errBackend

	wrongIdentity := newMapResolver()
	impostor := newToySnapshot(t)
	wrongIdentity.store(impostor)
	wrongIdentity.items[tok] = impostor

	tests := []struct {
		name  string
		proxy *Proxy
		cause error
	}{
		{"no resolver", NewProxy(tok, nil), nil},
		{"resolver error", NewProxy(tok, failing), errBackend},
		{"missing record", NewProxy(tok, newMapResolver()), domain.ErrSnapshotNotFound},
		{"identity mismatch", NewProxy(tok, wrongIdentity), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Equal(ctx, tt.proxy)
			if !errors.Is(err, domain.ErrUnresolvableProxy) {
				t.Fatalf("Equal() error = %v, want ErrUnresolvableProxy", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("Equal() error = %v, want cause %v", err, tt.cause)
			}
			if _, err := tt.proxy.Equal(ctx, s); !errors.Is(err, domain.ErrUnresolvableProxy) {
				t.Errorf("proxy.Equal() error = %v, want ErrUnresolvableProxy", err)
			}
			if tt.proxy.Loaded() {
				t.Error("failed resolution should leave the proxy unloaded")
			}
		})
	}
}

func TestReversed_ThroughProxyLink(t *testing.T) {
	ctx := context.Background()
	resolver := newMapResolver()

	// Simulate a pair loaded from storage: each half holds a placeholder
	// for the other.
	a := newToySnapshot(t)
	b, err := a.createReversed()
	if err != nil {
		t.Fatal(err)
	}
	b.rev.Store(nil)
	tokA := resolver.store(a)
	tokB := resolver.store(b)

	if err := a.LinkReversed(NewProxy(tokB, resolver)); err != nil {
		t.Fatalf("LinkReversed() error = %v", err)
	}
	if err := b.LinkReversed(NewProxy(tokA, resolver)); err != nil {
		t.Fatalf("LinkReversed() error = %v", err)
	}

	ref, ok := a.ReversedRef()
	if !ok || !IsProxy(ref) {
		t.Fatal("link should hold a proxy before first access")
	}

	got, err := a.Reversed(ctx)
	if err != nil {
		t.Fatalf("Reversed() error = %v", err)
	}
	if got != b {
		t.Fatal("Reversed() did not resolve to the stored partner")
	}
	ref, _ = b.ReversedRef()
	if ref != Ref(a) {
		t.Error("partner should be re-linked to the materialized original")
	}
	back, err := b.Reversed(ctx)
	if err != nil || back != a {
		t.Errorf("partner.Reversed() = %v, %v; want original", back, err)
	}
}

func TestReversed_UnresolvableLink(t *testing.T) {
	ctx := context.Background()
	a := newToySnapshot(t)
	tok, _ := domain.NewIdentityToken()
	failing := newMapResolver()
	failing.err = errBackend

	if err := a.LinkReversed(NewProxy(tok, failing)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reversed(ctx); !errors.Is(err, domain.ErrUnresolvableProxy) {
		t.Errorf("Reversed() error = %v, want ErrUnresolvableProxy", err)
	}

	// Not retried by the core, but a later call may succeed.
	failing.err = nil
	failing.items[tok] = newToySnapshot(t)
	_ = failing.items[tok].AssignIdentity(tok)
	if _, err := a.Reversed(ctx); err != nil {
		t.Errorf("Reversed() after backend recovery error = %v", err)
	}
}

func TestLinkReversed_Errors(t *testing.T) {
	a := newToySnapshot(t)
	b := newToySnapshot(t)

	if err := a.LinkReversed(nil); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("LinkReversed(nil) error = %v", err)
	}
	if err := a.LinkReversed((*Snapshot)(nil)); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("LinkReversed(nil snapshot) error = %v", err)
	}
	if err := a.LinkReversed((*Proxy)(nil)); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("LinkReversed(nil proxy) error = %v", err)
	}
	if a.HasReversed() {
		t.Fatal("rejected partners should leave the link unset")
	}
	if err := a.LinkReversed(a); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("LinkReversed(self) error = %v", err)
	}
	if err := a.LinkReversed(b); err != nil {
		t.Fatalf("LinkReversed(b) error = %v", err)
	}
	if ref, _ := b.ReversedRef(); ref != Ref(a) {
		t.Error("linking a materialized partner should link both halves")
	}
	if err := a.LinkReversed(b); err != nil {
		t.Errorf("re-linking the same partner should be a no-op, got %v", err)
	}
	if err := a.LinkReversed(newToySnapshot(t)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("LinkReversed(other) error = %v, want ErrInvalidArgument", err)
	}
}
