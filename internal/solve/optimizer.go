package solve

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ProgressFunc observes one finished iteration. Used by callers that stream
// progress (the job server); the loop itself never depends on it.
type ProgressFunc func(iter int, err2, delta2 float64, accepted bool)

// Options configures one optimization run. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	// MaxIters caps the number of iterations. One extra attempt is allowed
	// past the cap so a final rollback can still be evaluated.
	MaxIters int

	// MinDeltaNorm2 stops the run once an accepted step's squared norm
	// falls below it. 0 disables the check.
	MinDeltaNorm2 float64

	// MinGradNorm2 stops the run once the gradient's squared norm falls
	// below it. 0 disables the check.
	MinGradNorm2 float64

	// MinErr2 stops the run once the error falls below it. 0 disables the
	// check.
	MinErr2 float64

	// MaxTotalFailures / MaxConsecFailures cap the failure budgets. 0
	// disables the corresponding cap.
	MaxTotalFailures  int
	MaxConsecFailures int

	// MaxDuration is an optional wall-clock budget, checked between
	// iterations. 0 disables it.
	MaxDuration time.Duration

	// Context, when non-nil, lets a caller cancel the run between
	// iterations. The parameters keep the last accepted step.
	Context context.Context

	// ExportHessian saves the last accepted Hessian into the Output.
	ExportHessian bool

	// LogEnabled turns on per-iteration logging; LogX additionally logs
	// the parameter value.
	LogEnabled bool
	LogX       bool

	// Progress, when set, is called after every iteration.
	Progress ProgressFunc
}

// DefaultOptions returns the standard configuration: a hundred iterations,
// gradient-norm convergence, and a single tolerated failure.
func DefaultOptions() Options {
	return Options{
		MaxIters:          100,
		MinGradNorm2:      1e-12,
		MaxTotalFailures:  1,
		MaxConsecFailures: 1,
		ExportHessian:     true,
		LogX:              true,
	}
}

// hessianExporter is implemented by solvers that can snapshot their Hessian.
type hessianExporter interface {
	exportHessian() *mat.SymDense
}

// finiteChecker is implemented by solvers that can vouch for the finiteness
// of their built system.
type finiteChecker interface {
	systemFinite() bool
}

// Optimize runs the build / solve / accept-or-reject loop until a stop
// condition fires. x is mutated in place and reflects only accepted steps: a
// rejected step is rolled back to the last known good parameters before the
// next iteration.
func Optimize(x Params, solver Solver, opts Options) *Output {
	out := &Output{
		LastErr2:   math.MaxFloat64,
		StopReason: StopMaxIters,
	}
	out.Errs2 = make([]float64, 0, opts.MaxIters+1)
	out.Deltas2 = make([]float64, 0, opts.MaxIters+1)
	out.Successes = make([]bool, 0, opts.MaxIters+1)

	lastGood := x.Clone()
	alreadyRolled := true // nothing to roll back to before the first accepted step
	start := time.Now()

	// The extra iteration past the cap lets a final rollback be evaluated.
	for iter := 0; iter <= opts.MaxIters; iter++ {
		if opts.MaxDuration > 0 && iter > 0 && time.Since(start) >= opts.MaxDuration {
			out.StopReason = StopTimedOut
			break
		}
		if opts.Context != nil && iter > 0 && opts.Context.Err() != nil {
			out.StopReason = StopCancelled
			break
		}

		built := solver.Build(x)
		cost := solver.Cost()
		err2 := cost.Err2
		out.NumResiduals = cost.NumResiduals

		if !built && iter == 0 {
			out.record(0, 0, false)
			out.StopReason = StopNoResiduals
			slog.Debug("no residuals on first iteration, stopping")
			break
		}

		var dx []float64
		solved := false
		if built {
			dx, solved = solver.Solve()
		}
		solverFailed := !solved

		var delta2 float64
		if solved {
			delta2 = floats.Dot(dx, dx)
		}

		gradNorm2 := solver.GradSquaredNorm()

		// Non-finite values anywhere in the system corrupt the run; no
		// further parameter mutation is allowed. A failed factorization
		// over non-finite inputs counts as corruption, not as an SPD
		// failure.
		systemHasNaNs := !isFinite(delta2) || !isFinite(err2) || !isFinite(gradNorm2)
		if !systemHasNaNs && solverFailed && built {
			if fc, ok := solver.(finiteChecker); ok && !fc.systemFinite() {
				systemHasNaNs = true
			}
		}
		if systemHasNaNs {
			solverFailed = true
		}

		derr := err2 - out.LastErr2
		good := derr < 0 && !solverFailed
		out.record(err2, delta2, good)

		if systemHasNaNs {
			solver.FailedStep()
			out.StopReason = StopSystemHasNaNs
			slog.Warn("non-finite values in solved system, stopping",
				"iter", iter, "err2", err2, "delta2", delta2)
			break
		}

		if good {
			if iter > 0 {
				lastGood.CopyFrom(x)
			}
			x.PlusEq(dx)
			out.LastErr2 = err2
			if opts.ExportHessian {
				if he, ok := solver.(hessianExporter); ok {
					out.LastHessian = he.exportHessian()
				}
			}
			alreadyRolled = false
			out.NumConsecFailures = 0
			solver.GoodStep(derr)
		} else {
			// Rollback is idempotent: never twice in a row without
			// an intervening good step.
			if !alreadyRolled {
				x.CopyFrom(lastGood)
				alreadyRolled = true
			}
			out.NumFailures++
			out.NumConsecFailures++
			if solverFailed {
				solver.FailedStep()
			} else {
				solver.BadStep(derr)
			}
		}

		if opts.LogEnabled {
			logIteration(iter, x, err2, delta2, derr, gradNorm2, cost.NumResiduals, good, opts.LogX)
		}
		if opts.Progress != nil {
			opts.Progress(iter, err2, delta2, good)
		}

		// Terminal conditions, in fixed priority order.
		if solverFailed {
			out.StopReason = StopSolverFailed
			break
		}
		if good {
			if opts.MinErr2 > 0 && err2 < opts.MinErr2 {
				out.StopReason = StopMinError
				break
			}
			if opts.MinDeltaNorm2 > 0 && delta2 < opts.MinDeltaNorm2 {
				out.StopReason = StopMinDeltaNorm
				break
			}
			if opts.MinGradNorm2 > 0 && gradNorm2 < opts.MinGradNorm2 {
				out.StopReason = StopMinGradNorm
				break
			}
		} else {
			if opts.MaxConsecFailures > 0 && out.NumConsecFailures >= opts.MaxConsecFailures {
				out.StopReason = StopMaxConsecFails
				break
			}
			if opts.MaxTotalFailures > 0 && out.NumFailures >= opts.MaxTotalFailures {
				out.StopReason = StopMaxFails
				break
			}
		}
	}

	return out
}

func logIteration(iter int, x Params, err2, delta2, derr, gradNorm2 float64, nres int, good, logX bool) {
	msg := "rejected step"
	if good {
		msg = "accepted step"
	}
	args := []any{
		"iter", iter,
		"err2", err2,
		"delta2", delta2,
		"derr2", derr,
		"grad_norm2", gradNorm2,
		"residuals", nres,
	}
	if logX {
		args = append(args, "x", x.String())
	}
	slog.Info(msg, args...)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
