package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/nlfit/internal/opt"
	"github.com/cwbudde/nlfit/internal/solve"
)

// ErrNoPoints is returned when a fit is requested on an empty data set.
var ErrNoPoints = errors.New("fit: no data points")

// Refinement method names accepted by FitOptions.Method.
const (
	MethodGN      = "gn"       // Gauss-Newton with Cholesky factorization
	MethodGNDense = "gn-dense" // Gauss-Newton via dense inversion
	MethodGD      = "gd"       // gradient descent
)

// FitOptions configures a circle fit.
type FitOptions struct {
	// GlobalInit, when set, runs a derivative-free global search over the
	// data bounds and uses its best candidate as the starting point for
	// the refinement. When nil the centroid heuristic seeds the fit.
	GlobalInit opt.Optimizer

	// Method selects the refinement solver. Empty selects MethodGN.
	Method string

	// Solver overrides the refinement loop options. Nil selects defaults.
	Solver *solve.Options

	// OnIteration, when set, observes every refinement iteration with the
	// current parameters. Used for progress streaming and checkpointing.
	OnIteration func(iter int, c CircleParams, err2, delta2 float64, accepted bool)
}

// Result holds the outcome of a circle fit. Both costs are the Euclidean
// norm of the residual vector, so InitialCost and FinalCost compare
// directly.
type Result struct {
	Circle      CircleParams  `json:"circle"`
	InitialCost float64       `json:"initialCost"`
	FinalCost   float64       `json:"finalCost"`
	Output      *solve.Output `json:"-"`
}

// Fit estimates the circle that minimizes the squared geometric distance to
// the points. The fit seeds an initial guess, then refines it with damped
// Gauss-Newton steps.
func Fit(points []Point, opts FitOptions) (*Result, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	guess := InitialGuess(points)
	if opts.GlobalInit != nil {
		bounds := DataBounds(points)
		best, cost := opts.GlobalInit.Run(CircleCost(points), bounds.Lower, bounds.Upper, paramsPerCircle)
		candidate := DecodeCircle(best)
		slog.Debug("global search finished", "cost", cost, "candidate", candidate.String())
		guess = candidate
	}

	return refine(points, guess, opts)
}

// FitFrom refines an explicit starting point, bypassing the seeding step.
// Resumed jobs use it to continue from checkpointed parameters.
func FitFrom(points []Point, start CircleParams, opts FitOptions) (*Result, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return refine(points, start, opts)
}

func newSolver(points []Point, method string) (solve.Solver, error) {
	switch method {
	case "", MethodGN:
		return solve.NewGN(CircleResidual(points), solve.GNOptions{Dims: paramsPerCircle}), nil
	case MethodGNDense:
		return solve.NewGN(CircleResidual(points), solve.GNOptions{Dims: paramsPerCircle, DenseInverse: true}), nil
	case MethodGD:
		// The Gauss-Newton Hessian diagonal scales with the point count,
		// so an inversely scaled rate keeps the steps stable.
		return solve.NewGD(CircleGradient(points), solve.GDOptions{
			Dims:         paramsPerCircle,
			LearningRate: 1 / float64(len(points)),
		}), nil
	default:
		return nil, fmt.Errorf("fit: unknown method %q", method)
	}
}

func refine(points []Point, guess CircleParams, opts FitOptions) (*Result, error) {
	sOpts := solve.DefaultOptions()
	if opts.Solver != nil {
		sOpts = *opts.Solver
	}

	solver, err := newSolver(points, opts.Method)
	if err != nil {
		return nil, err
	}

	cost := CircleCost(points)
	initialCost := cost(guess.Encode())

	c := guess
	if opts.OnIteration != nil {
		inner := sOpts.Progress
		onIter := opts.OnIteration
		sOpts.Progress = func(iter int, err2, delta2 float64, accepted bool) {
			onIter(iter, c, err2, delta2, accepted)
			if inner != nil {
				inner(iter, err2, delta2, accepted)
			}
		}
	}
	out := solve.Optimize(&c, solver, sOpts)

	slog.Info("circle fit finished",
		"circle", c.String(),
		"initial_cost", initialCost,
		"final_err2", out.LastErr2,
		"iterations", out.NumIters,
		"stop", out.StopReason.String(),
	)

	return &Result{
		Circle:      c,
		InitialCost: initialCost,
		FinalCost:   out.LastErr2,
		Output:      out,
	}, nil
}

// FitMultiStart runs up to starts refinements from perturbed initial
// guesses and keeps the best. The tracker cuts the run short once
// additional starts stop improving the fit.
func FitMultiStart(points []Point, starts int, seed int64, opts FitOptions, conv ConvergenceConfig) (*Result, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if starts < 1 {
		starts = 1
	}

	rng := rand.New(rand.NewSource(seed))
	base := InitialGuess(points)
	bounds := DataBounds(points)
	spreadX := bounds.Upper[0] - bounds.Lower[0]
	spreadY := bounds.Upper[1] - bounds.Lower[1]

	tracker := NewConvergenceTracker(conv)
	var best *Result

	for i := 0; i < starts; i++ {
		guess := base
		if i > 0 {
			guess.CX += 0.25 * spreadX * (rng.Float64() - 0.5)
			guess.CY += 0.25 * spreadY * (rng.Float64() - 0.5)
			guess.R *= 0.5 + rng.Float64()
		}

		res, err := refine(points, guess, opts)
		if err != nil {
			return nil, err
		}
		if best == nil || res.FinalCost < best.FinalCost {
			best = res
		}
		if tracker.Update(res.FinalCost) {
			break
		}
	}
	return best, nil
}
