package solve

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// floatEps is the double-precision machine epsilon, used as the positivity
// floor for the 1x1 closed-form solve.
const floatEps = 2.220446049250313e-16

// ResidualFunc accumulates residuals at x into grad and the Hessian
// approximation hess, and reports the resulting error. Both accumulators are
// zeroed before the call.
type ResidualFunc func(x Params, grad []float64, hess Hessian) Eval

// GNOptions configures the Gauss-Newton solver.
type GNOptions struct {
	// DenseInverse solves via an explicit matrix inverse instead of the
	// Cholesky factorization. Ignored for sparse storage, where the
	// factorization is mandatory.
	DenseInverse bool

	// HessianUpperOnly declares that the residual function fills only the
	// upper triangle; the solver mirrors it before any solve path that
	// needs full storage.
	HessianUpperOnly bool

	// GradClamp clips gradient components into [-GradClamp, GradClamp]
	// before solving. 0 disables clamping.
	GradClamp float64

	// MinHessianDiag rejects a build whose Hessian has a diagonal entry
	// with magnitude below this floor. That signals a residual function
	// that never populated curvature. 0 disables the check.
	MinHessianDiag float64

	// Cost selects the error normalization transforms.
	Cost CostOptions

	// Dims fixes the system dimension at construction. 0 means dynamic.
	Dims int
}

// GN is the second-order solver: it builds a gradient and a JᵗJ Hessian
// approximation and solves the normal equations H*dx = -g through a
// symmetric positive-definite factorization, with a dense-inverse fallback.
type GN struct {
	hooks
	fn   ResidualFunc
	opts GNOptions
	grad []float64
	hess hessStorage
	cost Cost
}

// NewGN creates a dense Gauss-Newton solver around the given accumulator.
func NewGN(fn ResidualFunc, opts GNOptions) *GN {
	s := &GN{fn: fn, opts: opts, hess: newDenseHessian(opts.Dims)}
	if opts.Dims > 0 {
		s.grad = make([]float64, opts.Dims)
	}
	return s
}

// NewSparseGN creates a Gauss-Newton solver with sparse Hessian
// accumulation. The SPD factorization path is always used; a DenseInverse
// request is ignored with a warning.
func NewSparseGN(fn ResidualFunc, opts GNOptions) *GN {
	if opts.DenseInverse {
		slog.Warn("sparse Hessian requires the factorization path, ignoring DenseInverse")
		opts.DenseInverse = false
	}
	s := &GN{fn: fn, opts: opts, hess: newSparseHessian(opts.Dims)}
	if opts.Dims > 0 {
		s.grad = make([]float64, opts.Dims)
	}
	return s
}

func (s *GN) resize(dims int) {
	if s.opts.Dims > 0 {
		if dims != s.opts.Dims {
			panic(fmt.Sprintf("solve: static dimension %d does not match runtime dimension %d", s.opts.Dims, dims))
		}
		return
	}
	if len(s.grad) != dims {
		s.grad = make([]float64, dims)
		s.hess.resize(dims)
	}
}

// Build zeroes both accumulators, runs the residual function, clamps the
// gradient and validates the Hessian diagonal. Returns false when no
// residual was produced or the diagonal check failed.
func (s *GN) Build(x Params) bool {
	s.resize(x.Dims())
	zeroVec(s.grad)
	s.hess.zero()

	c := s.fn(x, s.grad, s.hess).cost()
	normalizeCost(&c, s.opts.Cost)
	s.cost = c
	if c.NumResiduals == 0 {
		return false
	}

	clampVec(s.grad, s.opts.GradClamp)

	if s.opts.MinHessianDiag > 0 && s.hess.diagMin() < s.opts.MinHessianDiag {
		slog.Debug("hessian diagonal below floor, rejecting build",
			"diag_min", s.hess.diagMin(), "floor", s.opts.MinHessianDiag)
		s.cost.NumResiduals = 0
		return false
	}
	return true
}

// Solve computes the Gauss-Newton step. Failure is expected control flow: a
// zero-residual build or a non-positive-definite system.
func (s *GN) Solve() ([]float64, bool) {
	if s.cost.NumResiduals == 0 {
		return nil, false
	}
	n := len(s.grad)
	if n == 0 {
		return nil, false
	}

	if !s.opts.DenseInverse {
		var chol mat.Cholesky
		if !chol.Factorize(s.hess.symmetric()) {
			return nil, false
		}
		var dx mat.VecDense
		if err := chol.SolveVecTo(&dx, mat.NewVecDense(n, s.grad)); err != nil {
			return nil, false
		}
		step := make([]float64, n)
		for i := range step {
			step[i] = -dx.AtVec(i)
		}
		return step, true
	}

	// Dense inverse path, with the 1x1 closed form: never invert a
	// near-zero scalar.
	if n == 1 {
		h := s.hess.At(0, 0)
		if h <= floatEps {
			return make([]float64, 1), true
		}
		return []float64{-s.grad[0] / h}, true
	}

	if s.opts.HessianUpperOnly {
		s.hess.mirrorUpper()
	}
	dh, ok := s.hess.(*denseHessian)
	if !ok {
		return nil, false
	}
	var inv mat.Dense
	if err := inv.Inverse(dh.m); err != nil {
		return nil, false
	}
	var dx mat.VecDense
	dx.MulVec(&inv, mat.NewVecDense(n, s.grad))
	step := make([]float64, n)
	for i := range step {
		step[i] = -dx.AtVec(i)
	}
	return step, true
}

func (s *GN) Dims() int { return len(s.grad) }

func (s *GN) Cost() Cost { return s.cost }

// Gradient exposes the solver-owned gradient buffer.
func (s *GN) Gradient() []float64 { return s.grad }

func (s *GN) GradSquaredNorm() float64 {
	return floats.Dot(s.grad, s.grad)
}

// Hessian exposes the solver-owned Hessian accumulator.
func (s *GN) Hessian() Hessian { return s.hess }

// exportHessian snapshots the current Hessian in symmetric form for the
// driver's Output.
func (s *GN) exportHessian() *mat.SymDense {
	return s.hess.symmetric()
}

// systemFinite reports whether the built gradient and Hessian are free of
// non-finite values.
func (s *GN) systemFinite() bool {
	for _, g := range s.grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return false
		}
	}
	return s.hess.finite()
}

// MaxStdDev returns the square root of the maximum coordinate variance,
// derived from the inverse Hessian. Exposed for confidence reporting; the
// control loop never consults it.
func (s *GN) MaxStdDev() (float64, error) {
	var chol mat.Cholesky
	if !chol.Factorize(s.hess.symmetric()) {
		return 0, fmt.Errorf("hessian is not positive definite")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return 0, fmt.Errorf("failed to invert hessian: %w", err)
	}
	n := inv.SymmetricDim()
	max := math.Inf(-1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v := inv.At(i, j); v > max {
				max = v
			}
		}
	}
	return math.Sqrt(max), nil
}
