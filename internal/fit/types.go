package fit

import (
	"fmt"
	"math"

	"github.com/cwbudde/nlfit/internal/solve"
)

// Point is a 2D data sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CircleParams holds the three circle parameters under optimization:
// center (CX, CY) and radius R.
type CircleParams struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	R  float64 `json:"r"`
}

const paramsPerCircle = 3

// Dims returns the parameter dimensionality.
func (c *CircleParams) Dims() int { return paramsPerCircle }

// PlusEq applies an additive update to the parameters.
func (c *CircleParams) PlusEq(delta []float64) {
	if len(delta) != paramsPerCircle {
		panic(fmt.Sprintf("fit: delta has %d elements, want %d", len(delta), paramsPerCircle))
	}
	c.CX += delta[0]
	c.CY += delta[1]
	c.R += delta[2]
}

// Clone returns an independent copy.
func (c *CircleParams) Clone() solve.Params {
	cp := *c
	return &cp
}

// CopyFrom overwrites the parameters from another CircleParams.
func (c *CircleParams) CopyFrom(src solve.Params) {
	*c = *src.(*CircleParams)
}

func (c *CircleParams) String() string {
	return fmt.Sprintf("center=(%.6g, %.6g) r=%.6g", c.CX, c.CY, c.R)
}

// Encode flattens the parameters for optimizers that work on raw vectors.
func (c *CircleParams) Encode() []float64 {
	return []float64{c.CX, c.CY, c.R}
}

// DecodeCircle reads circle parameters back from a flat vector.
func DecodeCircle(data []float64) CircleParams {
	return CircleParams{CX: data[0], CY: data[1], R: data[2]}
}

// Bounds defines valid parameter ranges for global search.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// DataBounds derives search bounds from the data: the center is confined to
// the bounding box of the points and the radius to its diagonal.
func DataBounds(points []Point) *Bounds {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	diag := math.Hypot(maxX-minX, maxY-minY)
	if diag == 0 {
		diag = 1
	}
	return &Bounds{
		Lower: []float64{minX, minY, 0},
		Upper: []float64{maxX, maxY, diag},
	}
}

// ClampVector clamps all parameters to the bounds in place.
func (b *Bounds) ClampVector(data []float64) {
	for i := range data {
		data[i] = clamp(data[i], b.Lower[i], b.Upper[i])
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
