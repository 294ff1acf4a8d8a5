package solve

import (
	"fmt"
	"strconv"
	"strings"
)

// Params abstracts the parameter object being optimized. The driver and the
// solvers only ever touch parameters through this interface, so scalars,
// vectors and user-defined composite types (with their own manifold update)
// are all optimized the same way.
//
// PlusEq applies a tangent-space increment in place and must accept the zero
// vector as a no-op. A delta of the wrong length is a caller bug and panics.
type Params interface {
	// Dims returns the runtime dimension of the local tangent space.
	Dims() int

	// PlusEq applies the increment delta to the parameters in place.
	// len(delta) must equal Dims().
	PlusEq(delta []float64)

	// Clone returns a deep copy, used by the driver to snapshot the last
	// known good parameters for rollback.
	Clone() Params

	// CopyFrom restores this value from a snapshot of the same concrete
	// type and dimension.
	CopyFrom(src Params)

	fmt.Stringer
}

// Scalar is a single float64 parameter.
type Scalar struct {
	Value float64
}

// NewScalar creates a scalar parameter with the given starting value.
func NewScalar(v float64) *Scalar {
	return &Scalar{Value: v}
}

func (s *Scalar) Dims() int { return 1 }

func (s *Scalar) PlusEq(delta []float64) {
	if len(delta) != 1 {
		panic(fmt.Sprintf("solve: scalar update with %d-dim delta", len(delta)))
	}
	s.Value += delta[0]
}

func (s *Scalar) Clone() Params {
	c := *s
	return &c
}

func (s *Scalar) CopyFrom(src Params) {
	o, ok := src.(*Scalar)
	if !ok {
		panic("solve: CopyFrom source is not a *Scalar")
	}
	s.Value = o.Value
}

func (s *Scalar) String() string {
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// Vector is a dynamically sized parameter vector with ordinary vector
// addition as its manifold update.
type Vector []float64

// NewVector creates a vector parameter from a copy of vals.
func NewVector(vals ...float64) Vector {
	v := make(Vector, len(vals))
	copy(v, vals)
	return v
}

func (v Vector) Dims() int { return len(v) }

func (v Vector) PlusEq(delta []float64) {
	if len(delta) != len(v) {
		panic(fmt.Sprintf("solve: vector update dimension mismatch: %d vs %d", len(delta), len(v)))
	}
	for i, d := range delta {
		v[i] += d
	}
}

func (v Vector) Clone() Params {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) CopyFrom(src Params) {
	o, ok := src.(Vector)
	if !ok || len(o) != len(v) {
		panic("solve: CopyFrom source is not a Vector of matching dimension")
	}
	copy(v, o)
}

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
