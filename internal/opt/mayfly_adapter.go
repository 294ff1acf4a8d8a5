package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to the
// Optimizer interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization. The library only supports a single
// scalar bound pair for all dimensions, so the search runs over the unit
// cube and positions are mapped into the caller's per-dimension box before
// evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.ObjectiveFunc = func(unit []float64) float64 {
		return eval(fromUnit(unit, lower, upper))
	}
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the box center if the search fails outright
		mid := make([]float64, dim)
		for i := range mid {
			mid[i] = 0.5
		}
		best := fromUnit(mid, lower, upper)
		return best, eval(best)
	}

	return fromUnit(result.GlobalBest.Position, lower, upper), result.GlobalBest.Cost
}

// fromUnit maps a unit-cube position into the [lower, upper] box.
func fromUnit(unit, lower, upper []float64) []float64 {
	out := make([]float64, len(unit))
	for i, u := range unit {
		if u < 0 {
			u = 0
		} else if u > 1 {
			u = 1
		}
		out[i] = lower[i] + u*(upper[i]-lower[i])
	}
	return out
}
