package fit

import (
	"math"

	"github.com/cwbudde/nlfit/internal/solve"
)

// Residuals evaluates the signed distance of every point to the circle:
// r_i = |p_i - center| - radius.
func Residuals(points []Point, c CircleParams) []float64 {
	r := make([]float64, len(points))
	for i, p := range points {
		r[i] = math.Hypot(p.X-c.CX, p.Y-c.CY) - c.R
	}
	return r
}

// CircleResidual returns a second-order accumulator for the geometric circle
// fit. The gradient and Gauss-Newton Hessian are analytic: each point
// contributes a Jacobian row (-(px-cx)/d, -(py-cy)/d, -1) where d is its
// distance to the center. Points coincident with the center carry no
// direction and are skipped.
func CircleResidual(points []Point) solve.ResidualFunc {
	return func(x solve.Params, grad []float64, hess solve.Hessian) solve.Eval {
		c := x.(*CircleParams)
		res := make([]float64, 0, len(points))
		for _, p := range points {
			dx := p.X - c.CX
			dy := p.Y - c.CY
			d := math.Hypot(dx, dy)
			ri := d - c.R
			res = append(res, ri)
			if d == 0 {
				continue
			}
			j := [paramsPerCircle]float64{-dx / d, -dy / d, -1}
			for a := 0; a < paramsPerCircle; a++ {
				grad[a] += j[a] * ri
				for b := a; b < paramsPerCircle; b++ {
					v := j[a] * j[b]
					hess.Add(a, b, v)
					if a != b {
						hess.Add(b, a, v)
					}
				}
			}
		}
		return solve.ResidualVec(res)
	}
}

// CircleGradient returns a first-order accumulator for gradient descent:
// the same Jacobian rows as CircleResidual, contracted with the residuals
// only.
func CircleGradient(points []Point) solve.GradFunc {
	return func(x solve.Params, grad []float64) solve.Eval {
		c := x.(*CircleParams)
		res := make([]float64, 0, len(points))
		for _, p := range points {
			dx := p.X - c.CX
			dy := p.Y - c.CY
			d := math.Hypot(dx, dy)
			ri := d - c.R
			res = append(res, ri)
			if d == 0 {
				continue
			}
			grad[0] += -dx / d * ri
			grad[1] += -dy / d * ri
			grad[2] += -ri
		}
		return solve.ResidualVec(res)
	}
}

// CircleCost returns a scalar objective over flat parameter vectors, the
// form derivative-free global optimizers consume. The value is the Euclidean
// norm of the signed distances, the same unit the refinement loop reports,
// so seeding costs, initial costs, and refined costs compare directly.
func CircleCost(points []Point) func([]float64) float64 {
	return func(data []float64) float64 {
		c := DecodeCircle(data)
		var sum float64
		for _, p := range points {
			ri := math.Hypot(p.X-c.CX, p.Y-c.CY) - c.R
			sum += ri * ri
		}
		return math.Sqrt(sum)
	}
}

// InitialGuess estimates circle parameters from the data: the centroid as
// center and the mean distance to it as radius.
func InitialGuess(points []Point) CircleParams {
	if len(points) == 0 {
		return CircleParams{R: 1}
	}
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(points))
	cx /= n
	cy /= n

	var r float64
	for _, p := range points {
		r += math.Hypot(p.X-cx, p.Y-cy)
	}
	return CircleParams{CX: cx, CY: cy, R: r / n}
}
