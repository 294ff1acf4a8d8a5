package solve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// priorResidualFunc pulls x toward y: residual r = x - y with an identity
// Jacobian, so grad = r and H = I.
func priorResidualFunc(y []float64) ResidualFunc {
	return func(x Params, grad []float64, hess Hessian) Eval {
		v := x.(Vector)
		r := make([]float64, len(v))
		for i := range v {
			r[i] = v[i] - y[i]
			grad[i] = r[i]
			hess.Add(i, i, 1)
		}
		return ResidualVec(r)
	}
}

func TestGNStepCholesky(t *testing.T) {
	y := []float64{4, 5}
	s := NewGN(priorResidualFunc(y), GNOptions{})

	x := NewVector(0, 0)
	require.True(t, s.Build(x))

	dx, ok := s.Solve()
	require.True(t, ok)
	require.InDelta(t, y[0], dx[0], 1e-10)
	require.InDelta(t, y[1], dx[1], 1e-10)
}

func TestGNStepDenseInverse(t *testing.T) {
	y := []float64{4, 5}
	s := NewGN(priorResidualFunc(y), GNOptions{DenseInverse: true})

	x := NewVector(0, 0)
	require.True(t, s.Build(x))

	dx, ok := s.Solve()
	require.True(t, ok)
	require.InDelta(t, y[0], dx[0], 1e-10)
	require.InDelta(t, y[1], dx[1], 1e-10)
}

// upperOnlyFunc builds H = [[2 1][1 2]], g = (1, 1), filling only the upper
// triangle. The exact step solves H*dx = -g: dx = (-1/3, -1/3).
func upperOnlyFunc(x Params, grad []float64, hess Hessian) Eval {
	grad[0], grad[1] = 1, 1
	hess.Add(0, 0, 2)
	hess.Add(0, 1, 1)
	hess.Add(1, 1, 2)
	return ErrCount(1, 2)
}

func TestGNUpperTriangularStorage(t *testing.T) {
	x := NewVector(0, 0)

	chol := NewGN(upperOnlyFunc, GNOptions{HessianUpperOnly: true})
	require.True(t, chol.Build(x))
	dxChol, ok := chol.Solve()
	require.True(t, ok)

	// The dense-inverse path needs the mirrored lower triangle.
	inv := NewGN(upperOnlyFunc, GNOptions{HessianUpperOnly: true, DenseInverse: true})
	require.True(t, inv.Build(x))
	dxInv, ok := inv.Solve()
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		require.InDelta(t, -1.0/3.0, dxChol[i], 1e-10)
		require.InDelta(t, dxChol[i], dxInv[i], 1e-10)
	}
}

func TestGNSparseMatchesDense(t *testing.T) {
	y := []float64{1, -2, 3}
	x := NewVector(0, 0, 0)

	dense := NewGN(priorResidualFunc(y), GNOptions{})
	require.True(t, dense.Build(x))
	dxDense, ok := dense.Solve()
	require.True(t, ok)

	sparse := NewSparseGN(priorResidualFunc(y), GNOptions{})
	require.True(t, sparse.Build(x))
	dxSparse, ok := sparse.Solve()
	require.True(t, ok)

	require.Len(t, dxSparse, len(dxDense))
	for i := range dxDense {
		require.InDelta(t, dxDense[i], dxSparse[i], 1e-10)
	}
}

func TestGNOneByOneNearZero(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		grad[0] = 1
		// Hessian left at zero: not significantly positive
		return ErrValue(1)
	}, GNOptions{DenseInverse: true})

	require.True(t, s.Build(NewVector(0)))
	dx, ok := s.Solve()
	require.True(t, ok)
	require.Equal(t, []float64{0}, dx, "near-zero 1x1 Hessian must yield the zero step")
}

func TestGNNotPositiveDefinite(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		grad[0], grad[1] = 1, 1
		hess.Add(0, 0, -1)
		hess.Add(1, 1, -1)
		return ErrCount(1, 2)
	}, GNOptions{})

	require.True(t, s.Build(NewVector(0, 0)))
	_, ok := s.Solve()
	require.False(t, ok, "negative definite system must fail the factorization")
}

func TestGNMinHessianDiag(t *testing.T) {
	// Residual function that forgets to populate curvature
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		grad[0] = 1
		return ErrValue(1)
	}, GNOptions{MinHessianDiag: 1e-7})

	require.False(t, s.Build(NewVector(0)), "build must reject an empty Hessian diagonal")
	_, ok := s.Solve()
	require.False(t, ok)
}

func TestGNZeroResiduals(t *testing.T) {
	s := NewGN(func(x Params, grad []float64, hess Hessian) Eval {
		return ErrCount(0, 0)
	}, GNOptions{})

	require.False(t, s.Build(NewVector(1)))
	_, ok := s.Solve()
	require.False(t, ok)
}

func TestGNMaxStdDev(t *testing.T) {
	s := NewGN(priorResidualFunc([]float64{1, 1}), GNOptions{})
	require.True(t, s.Build(NewVector(0, 0)))

	// H = I, so the inverse covariance is I and the max std dev is 1.
	sd, err := s.MaxStdDev()
	require.NoError(t, err)
	require.InDelta(t, 1.0, sd, 1e-10)
}

func TestGNStaticDimsMismatch(t *testing.T) {
	s := NewGN(priorResidualFunc([]float64{1}), GNOptions{Dims: 1})
	require.Panics(t, func() {
		s.Build(NewVector(1, 2))
	})
}

func TestGNDynamicResize(t *testing.T) {
	s := NewGN(priorResidualFunc([]float64{1, 2, 3}), GNOptions{})
	require.True(t, s.Build(NewVector(0, 0, 0)))
	require.Equal(t, 3, s.Dims())

	s2 := NewGN(priorResidualFunc([]float64{1, 2}), GNOptions{})
	require.True(t, s2.Build(NewVector(0, 0)))
	require.Equal(t, 2, s2.Dims())

	// After a resize, the step still solves correctly.
	dx, ok := s2.Solve()
	require.True(t, ok)
	require.InDelta(t, 1.0, dx[0], 1e-10)
	require.InDelta(t, 2.0, dx[1], 1e-10)
	require.False(t, math.IsNaN(dx[0]))
}
