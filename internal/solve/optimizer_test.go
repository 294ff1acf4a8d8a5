package solve

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptimizeQuadratic(t *testing.T) {
	// Minimize (x-2)^2; Gauss-Newton lands on the minimum in one step.
	target := 2.0
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		r := x.(*Scalar).Value - target
		grad[0] = r
		hess.Add(0, 0, 1)
		return ErrValue(r * r)
	}, GNOptions{})

	x := NewScalar(5)
	out := Optimize(x, s, DefaultOptions())

	require.True(t, out.Succeeded())
	require.True(t, out.Converged())
	require.Equal(t, StopMinGradNorm, out.StopReason)
	require.LessOrEqual(t, out.NumIters, 5)
	require.InDelta(t, target, x.Value, 1e-9)
	require.NotNil(t, out.LastHessian)
}

func TestOptimizeMinError(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		r := x.(*Scalar).Value - 2
		grad[0] = r
		hess.Add(0, 0, 1)
		return ErrValue(r * r)
	}, GNOptions{})

	opts := DefaultOptions()
	opts.MinGradNorm2 = 0
	opts.MinErr2 = 1e-6

	out := Optimize(NewScalar(5), s, opts)
	require.Equal(t, StopMinError, out.StopReason)
	require.True(t, out.Converged())
	require.Less(t, out.LastErr2, 1e-6)
}

func TestOptimizeNaNInjection(t *testing.T) {
	calls := 0
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		calls++
		r := x.(*Scalar).Value - 2
		if calls >= 3 {
			r = math.NaN()
		}
		grad[0] = r * 0.1 // small gradient keeps the run going
		hess.Add(0, 0, 1)
		return ErrValue(r * r)
	}, GNOptions{})

	x := NewScalar(5)
	opts := DefaultOptions()
	opts.MinGradNorm2 = 0
	opts.MaxConsecFailures = 10
	opts.MaxTotalFailures = 10

	out := Optimize(x, s, opts)

	require.Equal(t, StopSystemHasNaNs, out.StopReason)
	require.False(t, out.Succeeded())
	require.False(t, math.IsNaN(x.Value), "parameters must not absorb a corrupt step")
	require.Len(t, out.Errs2, out.NumIters)
	require.Len(t, out.Deltas2, out.NumIters)
	require.Len(t, out.Successes, out.NumIters)
	require.False(t, out.Successes[out.NumIters-1])
}

func TestOptimizeNoResiduals(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		return ErrCount(0, 0)
	}, GNOptions{})

	x := NewScalar(7)
	out := Optimize(x, s, DefaultOptions())

	require.Equal(t, StopNoResiduals, out.StopReason)
	require.False(t, out.Succeeded())
	require.Equal(t, 1, out.NumIters)
	require.Equal(t, 7.0, x.Value, "parameters stay untouched when nothing constrains them")
}

func TestOptimizeResidualsVanishMidRun(t *testing.T) {
	calls := 0
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		calls++
		if calls > 1 {
			return ErrCount(0, 0)
		}
		r := x.(*Scalar).Value - 2
		grad[0] = r
		hess.Add(0, 0, 1)
		return ErrValue(r * r)
	}, GNOptions{})

	opts := DefaultOptions()
	opts.MinGradNorm2 = 0

	out := Optimize(NewScalar(5), s, opts)
	require.Equal(t, StopSolverFailed, out.StopReason)
	require.False(t, out.Succeeded())
}

func TestOptimizeRollback(t *testing.T) {
	// Gradient descent with an overshooting rate on x^2 diverges after the
	// first step, so every later step is rejected and rolled back.
	s := NewGD(func(x Params, grad []float64) Eval {
		v := x.(*Scalar).Value
		grad[0] = 2 * v
		return ErrValue(v * v)
	}, GDOptions{LearningRate: 1.2})

	x := NewScalar(1)
	out := Optimize(x, s, DefaultOptions())

	require.Equal(t, StopMaxConsecFails, out.StopReason)
	require.True(t, out.Succeeded(), "hitting a failure cap is a stop, not an error")
	require.Equal(t, 1.0, x.Value, "rejected steps must leave the last good parameters")
	require.Equal(t, 1.0, out.LastErr2)
	require.Equal(t, []bool{true, false}, out.Successes)
	require.Equal(t, 1, out.NumFailures)
}

func TestOptimizeAcceptedErrorsDecrease(t *testing.T) {
	s := NewGD(func(x Params, grad []float64) Eval {
		v := x.(*Scalar).Value
		grad[0] = 2 * v
		return ErrValue(v * v)
	}, GDOptions{LearningRate: 0.25})

	opts := DefaultOptions()
	opts.MaxIters = 20
	opts.MinGradNorm2 = 0

	out := Optimize(NewScalar(4), s, opts)

	last := math.MaxFloat64
	for i, e := range out.Errs2 {
		if out.Successes[i] {
			require.Less(t, e, last, "accepted errors must strictly decrease")
			last = e
		}
	}
	require.Equal(t, last, out.LastErr2)
}

func TestOptimizeTimeout(t *testing.T) {
	s := NewGD(func(x Params, grad []float64) Eval {
		time.Sleep(time.Millisecond)
		v := x.(*Scalar).Value
		grad[0] = 2 * v
		return ErrValue(v * v)
	}, GDOptions{LearningRate: 0.01})

	opts := DefaultOptions()
	opts.MinGradNorm2 = 0
	opts.MaxDuration = time.Microsecond

	out := Optimize(NewScalar(4), s, opts)
	require.Equal(t, StopTimedOut, out.StopReason)
	require.True(t, out.Succeeded())
}

func TestOptimizeCancelledContext(t *testing.T) {
	s := NewGD(func(x Params, grad []float64) Eval {
		v := x.(*Scalar).Value
		grad[0] = 2 * v
		return ErrValue(v * v)
	}, GDOptions{LearningRate: 0.01})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.MinGradNorm2 = 0
	opts.Context = ctx

	// One iteration still runs so the best state is evaluated at least once.
	out := Optimize(NewScalar(4), s, opts)
	require.Equal(t, StopCancelled, out.StopReason)
	require.True(t, out.Succeeded())
	require.Equal(t, 1, out.NumIters)
	require.Len(t, out.Errs2, out.NumIters)
	require.Len(t, out.Successes, out.NumIters)
}

func TestOptimizeMaxIters(t *testing.T) {
	s := NewGD(func(x Params, grad []float64) Eval {
		v := x.(*Scalar).Value
		grad[0] = 2 * v
		return ErrValue(v * v)
	}, GDOptions{LearningRate: 0.25})

	opts := DefaultOptions()
	opts.MaxIters = 3
	opts.MinGradNorm2 = 0

	out := Optimize(NewScalar(4), s, opts)
	require.Equal(t, StopMaxIters, out.StopReason)
	require.True(t, out.Succeeded())
	require.Equal(t, 4, out.NumIters, "the run gets one extra attempt past the cap")
}

func TestOptimizeProgressCallback(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		r := x.(*Scalar).Value - 2
		grad[0] = r
		hess.Add(0, 0, 1)
		return ErrValue(r * r)
	}, GNOptions{})

	var iters []int
	opts := DefaultOptions()
	opts.Progress = func(iter int, err2, delta2 float64, accepted bool) {
		iters = append(iters, iter)
	}

	out := Optimize(NewScalar(5), s, opts)
	require.Len(t, iters, out.NumIters)
	for i, it := range iters {
		require.Equal(t, i, it)
	}
}

// pointPair is a user-defined parameter block: two 2D points optimized
// jointly, exercising composite parameter types end to end.
type pointPair struct {
	A, B [2]float64
}

func (p *pointPair) Dims() int { return 4 }

func (p *pointPair) PlusEq(delta []float64) {
	if len(delta) != 4 {
		panic(fmt.Sprintf("pointPair: delta has %d elements, want 4", len(delta)))
	}
	p.A[0] += delta[0]
	p.A[1] += delta[1]
	p.B[0] += delta[2]
	p.B[1] += delta[3]
}

func (p *pointPair) Clone() Params {
	c := *p
	return &c
}

func (p *pointPair) CopyFrom(src Params) {
	*p = *src.(*pointPair)
}

func (p *pointPair) String() string {
	return fmt.Sprintf("A=(%g, %g) B=(%g, %g)", p.A[0], p.A[1], p.B[0], p.B[1])
}

func TestOptimizeCompositeParams(t *testing.T) {
	targetA := [2]float64{1, 2}
	targetB := [2]float64{-3, 4}

	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		p := x.(*pointPair)
		r := []float64{
			p.A[0] - targetA[0],
			p.A[1] - targetA[1],
			p.B[0] - targetB[0],
			p.B[1] - targetB[1],
		}
		for i, ri := range r {
			grad[i] = ri
			hess.Add(i, i, 1)
		}
		return ResidualVec(r)
	}, GNOptions{})

	x := &pointPair{}
	out := Optimize(x, s, DefaultOptions())

	require.True(t, out.Converged())
	require.InDelta(t, targetA[0], x.A[0], 1e-9)
	require.InDelta(t, targetA[1], x.A[1], 1e-9)
	require.InDelta(t, targetB[0], x.B[0], 1e-9)
	require.InDelta(t, targetB[1], x.B[1], 1e-9)
}
