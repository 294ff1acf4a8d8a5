package solve

import "math"

// Cost is the accumulated error of one residual evaluation.
type Cost struct {
	// Err2 is the accumulated squared error (or its normalized form, see
	// CostOptions).
	Err2 float64

	// NumResiduals is the number of residuals accumulated.
	NumResiduals int
}

// CostOptions selects the normalization transforms applied to an accumulated
// cost. The transforms are applied in a fixed order so results from different
// solvers stay comparable: square root first, then half-scaling, then
// per-residual averaging.
type CostOptions struct {
	// RootNorm replaces the sum of squares with its square root.
	RootNorm bool

	// DownscaleBy2 halves the cost (common when the loss carries a 1/2
	// factor).
	DownscaleBy2 bool

	// Normalize divides the cost by the residual count.
	Normalize bool
}

// normalizeCost applies the configured transforms to c, in order.
func normalizeCost(c *Cost, opts CostOptions) {
	if opts.RootNorm {
		c.Err2 = math.Sqrt(c.Err2)
	}
	if opts.DownscaleBy2 {
		c.Err2 *= 0.5
	}
	if opts.Normalize && c.NumResiduals > 0 {
		c.Err2 /= float64(c.NumResiduals)
	}
}

// Eval is the value returned by a residual callback. The three constructors
// cover the three supported shapes: a bare scalar error, an (error, count)
// pair, and a residual vector whose Euclidean norm and length are used.
type Eval struct {
	err2 float64
	n    int
}

// ErrValue reports a bare scalar error with an implicit residual count of 1.
func ErrValue(err2 float64) Eval {
	return Eval{err2: err2, n: 1}
}

// ErrCount reports an accumulated error together with the residual count.
func ErrCount(err2 float64, n int) Eval {
	return Eval{err2: err2, n: n}
}

// ResidualVec reports a residual vector; its Euclidean norm becomes the
// error and its length the residual count.
func ResidualVec(r []float64) Eval {
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return Eval{err2: math.Sqrt(sum), n: len(r)}
}

func (e Eval) cost() Cost {
	return Cost{Err2: e.err2, NumResiduals: e.n}
}
