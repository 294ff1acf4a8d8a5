package solve

// ResidualVecFunc evaluates the residual vector at x. It must not mutate x.
type ResidualVecFunc func(x Params) []float64

// defaultDiffStep is the central-difference step used when none is given.
const defaultDiffStep = 1e-6

// NumDiff1 turns a residual-vector function into a first-order accumulator
// by central differences, for callers without an analytic gradient. step 0
// selects the default.
func NumDiff1(f ResidualVecFunc, step float64) GradFunc {
	if step == 0 {
		step = defaultDiffStep
	}
	return func(x Params, grad []float64) Eval {
		r := f(x)
		if len(r) == 0 {
			return ErrCount(0, 0)
		}
		jac := numJacobian(f, x, len(r), step)
		for i := range grad {
			for k, rk := range r {
				grad[i] += jac[k][i] * rk
			}
		}
		return ResidualVec(r)
	}
}

// NumDiff2 turns a residual-vector function into a second-order accumulator:
// the gradient is Jᵗr and the Hessian approximation JᵗJ, with J estimated by
// central differences.
func NumDiff2(f ResidualVecFunc, step float64) ResidualFunc {
	if step == 0 {
		step = defaultDiffStep
	}
	return func(x Params, grad []float64, hess Hessian) Eval {
		r := f(x)
		if len(r) == 0 {
			return ErrCount(0, 0)
		}
		jac := numJacobian(f, x, len(r), step)
		dims := x.Dims()
		for i := 0; i < dims; i++ {
			for k, rk := range r {
				grad[i] += jac[k][i] * rk
			}
			for j := i; j < dims; j++ {
				var v float64
				for k := range r {
					v += jac[k][i] * jac[k][j]
				}
				hess.Add(i, j, v)
				if i != j {
					hess.Add(j, i, v)
				}
			}
		}
		return ResidualVec(r)
	}
}

// numJacobian estimates the residual Jacobian at x by central differences,
// one parameter dimension at a time. Rows are residuals, columns parameter
// dimensions.
func numJacobian(f ResidualVecFunc, x Params, nres int, step float64) [][]float64 {
	dims := x.Dims()
	jac := make([][]float64, nres)
	for k := range jac {
		jac[k] = make([]float64, dims)
	}
	delta := make([]float64, dims)
	for i := 0; i < dims; i++ {
		xp := x.Clone()
		delta[i] = step
		xp.PlusEq(delta)
		rp := f(xp)

		xm := x.Clone()
		delta[i] = -step
		xm.PlusEq(delta)
		rm := f(xm)

		delta[i] = 0
		for k := 0; k < nres && k < len(rp) && k < len(rm); k++ {
			jac[k][i] = (rp[k] - rm[k]) / (2 * step)
		}
	}
	return jac
}
