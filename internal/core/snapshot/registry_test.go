package snapshot

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
)

func TestRegistry_Compose(t *testing.T) {
	m := metric.NewRegistry()
	reg := NewRegistry(WithMetrics(m))

	coords, vels := testCoordinates(), testVelocities()

	first, err := reg.Compose("Toy", vels, coords)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	second, err := reg.Compose("Toy", vels, coords)
	if err != nil {
		t.Fatalf("second Compose() error = %v", err)
	}
	if first != second {
		t.Error("composing the same list twice should return the registered type")
	}

	if _, err := reg.Compose("Toy", coords); !errors.Is(err, domain.ErrTypeConflict) {
		t.Errorf("Compose(different list) error = %v, want ErrTypeConflict", err)
	}
	if _, err := reg.Compose("Broken", vels, vels); !errors.Is(err, domain.ErrCompositionConflict) {
		t.Errorf("Compose(duplicate) error = %v, want ErrCompositionConflict", err)
	}

	if got := testutil.ToFloat64(m.Compositions.WithLabelValues(metric.ResultOK)); got != 1 {
		t.Errorf("compositions{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Compositions.WithLabelValues(metric.ResultCached)); got != 1 {
		t.Errorf("compositions{cached} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Compositions.WithLabelValues(metric.ResultConflict)); got != 2 {
		t.Errorf("compositions{conflict} = %v, want 2", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Compose("B", testCoordinates()); err != nil {
		t.Fatal(err)
	}
	a, err := reg.Compose("A", testVelocities())
	if err != nil {
		t.Fatal(err)
	}

	got, err := reg.Lookup("A")
	if err != nil || got != a {
		t.Errorf("Lookup(A) = %v, %v", got, err)
	}
	if _, err := reg.Lookup("missing"); !errors.Is(err, domain.ErrTypeNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrTypeNotFound", err)
	}

	types := reg.Types()
	if len(types) != 2 || types[0].Name() != "A" || types[1].Name() != "B" {
		t.Errorf("Types() not sorted by name: %v", types)
	}
}

func TestRegistry_FailedCompositionNotRegistered(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Compose("Dup", testCoordinates(), testCoordinates()); err == nil {
		t.Fatal("expected composition conflict")
	}
	if _, err := reg.Lookup("Dup"); !errors.Is(err, domain.ErrTypeNotFound) {
		t.Errorf("failed composition should not register a type, got %v", err)
	}
}
