package solve

// Solver is the common contract for step-computation strategies. A solver
// owns the gradient (and, for second-order variants, Hessian) buffers, builds
// the linearized system from residuals at the current parameters, and
// proposes a step.
type Solver interface {
	// Build accumulates residuals at x into the solver's buffers. It
	// returns false when the callback produced no residuals, meaning there
	// is nothing to optimize this iteration.
	Build(x Params) bool

	// Solve computes a step from the last build. The second return is
	// false on expected failure: a non-positive-definite system or a build
	// that saw zero residuals. Callers must treat that as a hard stop for
	// the current iteration.
	Solve() ([]float64, bool)

	// Dims returns the dimension of the currently built system.
	Dims() int

	// Cost returns the cost of the last build, after normalization.
	Cost() Cost

	// GradSquaredNorm returns the squared norm of the current gradient.
	GradSquaredNorm() float64

	// Lifecycle hooks the driver calls after judging a step. Strategies
	// with internal state (a damping parameter, say) react here; the
	// stateless solvers inherit no-ops.
	GoodStep(quality float64)
	BadStep(quality float64)
	FailedStep()
}

// hooks provides no-op lifecycle methods for solvers without internal state.
type hooks struct{}

func (hooks) GoodStep(float64) {}
func (hooks) BadStep(float64)  {}
func (hooks) FailedStep()      {}

// clampVec clips every component of v into [-bound, bound]. A zero bound
// disables clamping. Returns whether clamping was applied.
func clampVec(v []float64, bound float64) bool {
	if bound == 0 {
		return false
	}
	for i, x := range v {
		if x > bound {
			v[i] = bound
		} else if x < -bound {
			v[i] = -bound
		}
	}
	return true
}

func zeroVec(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
