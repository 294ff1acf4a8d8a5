package solve

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// GradFunc accumulates residuals at x into grad and reports the resulting
// error. grad is zeroed before the call.
type GradFunc func(x Params, grad []float64) Eval

// GDOptions configures the gradient-descent solver.
type GDOptions struct {
	// LearningRate scales the step: dx = -LearningRate * gradient.
	// Defaults to 1.
	LearningRate float64

	// GradClamp clips gradient components into [-GradClamp, GradClamp]
	// before solving. 0 disables clamping.
	GradClamp float64

	// Cost selects the error normalization transforms.
	Cost CostOptions

	// Dims fixes the system dimension at construction. 0 means dynamic:
	// the gradient buffer follows the parameter's runtime dimension.
	Dims int
}

// GD is the first-order solver: it builds only a gradient and proposes a
// step scaled by the learning rate.
type GD struct {
	hooks
	fn   GradFunc
	opts GDOptions
	grad []float64
	cost Cost
}

// NewGD creates a gradient-descent solver around the given accumulator.
func NewGD(fn GradFunc, opts GDOptions) *GD {
	if opts.LearningRate == 0 {
		opts.LearningRate = 1
	}
	s := &GD{fn: fn, opts: opts}
	if opts.Dims > 0 {
		s.grad = make([]float64, opts.Dims)
	}
	return s
}

// resize adjusts the gradient buffer to dims. A statically sized solver
// rejects any other dimension: that is a misuse of the interface, not an
// optimization outcome.
func (s *GD) resize(dims int) {
	if s.opts.Dims > 0 {
		if dims != s.opts.Dims {
			panic(fmt.Sprintf("solve: static dimension %d does not match runtime dimension %d", s.opts.Dims, dims))
		}
		return
	}
	if len(s.grad) != dims {
		s.grad = make([]float64, dims)
	}
}

// Build zeroes the gradient, accumulates residuals at x and clamps the
// result. Returns false when no residual was produced.
func (s *GD) Build(x Params) bool {
	s.resize(x.Dims())
	zeroVec(s.grad)
	c := s.fn(x, s.grad).cost()
	normalizeCost(&c, s.opts.Cost)
	s.cost = c
	clampVec(s.grad, s.opts.GradClamp)
	return c.NumResiduals > 0
}

// Solve returns -lr * gradient, or failure when the last build produced zero
// residuals.
func (s *GD) Solve() ([]float64, bool) {
	if s.cost.NumResiduals == 0 {
		return nil, false
	}
	dx := make([]float64, len(s.grad))
	for i, g := range s.grad {
		dx[i] = -s.opts.LearningRate * g
	}
	return dx, true
}

func (s *GD) Dims() int { return len(s.grad) }

func (s *GD) Cost() Cost { return s.cost }

// Gradient exposes the solver-owned gradient buffer.
func (s *GD) Gradient() []float64 { return s.grad }

func (s *GD) GradSquaredNorm() float64 {
	return floats.Dot(s.grad, s.grad)
}
