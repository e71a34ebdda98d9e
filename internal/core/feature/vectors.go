package feature

import (
	"encoding/json"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// Vec3 is one particle's three-dimensional vector.
type Vec3 [3]float64

// UnmarshalJSON decodes exactly three components. A plain array decode
// would drop extra components and zero-fill missing ones.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var comps []float64
	if err := json.Unmarshal(data, &comps); err != nil {
		return err
	}
	if len(comps) != len(v) {
		return domain.ErrAttributeType.WithDetailsf("vector has %d components, want %d", len(comps), len(v))
	}
	copy(v[:], comps)
	return nil
}

// Vectors holds one Vec3 per particle.
type Vectors []Vec3

// Box holds the three periodic box vectors.
type Box [3]Vec3

// UnmarshalJSON decodes exactly three box vectors.
func (b *Box) UnmarshalJSON(data []byte) error {
	var rows []Vec3
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != len(b) {
		return domain.ErrAttributeType.WithDetailsf("box has %d vectors, want %d", len(rows), len(b))
	}
	copy(b[:], rows)
	return nil
}

// Negated returns a new slice with every component negated.
func (v Vectors) Negated() Vectors {
	if v == nil {
		return nil
	}
	out := make(Vectors, len(v))
	for i, p := range v {
		out[i] = Vec3{-p[0], -p[1], -p[2]}
	}
	return out
}

// Zeros returns n zero vectors.
func Zeros(n int) Vectors {
	return make(Vectors, n)
}

// Cubic returns a cubic box with edge length l.
func Cubic(l float64) *Box {
	return &Box{{l, 0, 0}, {0, l, 0}, {0, 0, l}}
}
