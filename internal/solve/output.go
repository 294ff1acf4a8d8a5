package solve

import "gonum.org/v1/gonum/mat"

// StopReason classifies why an optimization run ended.
type StopReason uint8

const (
	// StopMaxIters: reached the iteration cap (success).
	StopMaxIters StopReason = iota
	// StopMinDeltaNorm: the accepted step's squared norm fell below the
	// threshold (convergence).
	StopMinDeltaNorm
	// StopMinGradNorm: the gradient's squared norm fell below the
	// threshold (convergence).
	StopMinGradNorm
	// StopMinError: the error fell below the configured floor
	// (convergence).
	StopMinError
	// StopMaxFails: too many total failures to decrease the error
	// (success, the caller still gets a usable result).
	StopMaxFails
	// StopMaxConsecFails: too many consecutive failures to decrease the
	// error (success).
	StopMaxConsecFails
	// StopTimedOut: the wall-clock budget ran out between iterations
	// (success).
	StopTimedOut
	// StopCancelled: the run's context was cancelled between iterations
	// (success, the best parameters so far remain usable).
	StopCancelled
	// StopSystemHasNaNs: the solved step, gradient or error contained a
	// non-finite value (failure).
	StopSystemHasNaNs
	// StopSolverFailed: the normal equations could not be solved
	// (failure).
	StopSolverFailed
	// StopNoResiduals: the very first build produced no residuals
	// (failure).
	StopNoResiduals
)

func (s StopReason) String() string {
	switch s {
	case StopMaxIters:
		return "max iterations reached"
	case StopMinDeltaNorm:
		return "minimal step norm reached"
	case StopMinGradNorm:
		return "minimal gradient norm reached"
	case StopMinError:
		return "minimal error reached"
	case StopMaxFails:
		return "too many failures to decrease error"
	case StopMaxConsecFails:
		return "too many consecutive failures to decrease error"
	case StopTimedOut:
		return "wall-clock budget exhausted"
	case StopCancelled:
		return "cancelled"
	case StopSystemHasNaNs:
		return "system has non-finite values"
	case StopSolverFailed:
		return "failed to solve the normal equations"
	case StopNoResiduals:
		return "no residuals"
	default:
		return "unknown stop reason"
	}
}

// Output collects the results of one optimization run. It is owned solely by
// the caller after Optimize returns.
type Output struct {
	// LastErr2 is the best (last accepted) error.
	LastErr2 float64

	// StopReason is the terminal classification of the run.
	StopReason StopReason

	// NumResiduals is the residual count of the final evaluation.
	NumResiduals int

	// NumIters is the number of iterations actually executed.
	NumIters int

	// NumFailures counts all failures to decrease the error.
	NumFailures int

	// NumConsecFailures counts the trailing consecutive failures.
	NumConsecFailures int

	// LastHessian is the Hessian of the last accepted step, present only
	// when exporting was requested and the solver carries one.
	LastHessian *mat.SymDense

	// Per-iteration history. The three slices always have length NumIters.
	Errs2     []float64
	Deltas2   []float64
	Successes []bool
}

// Succeeded reports whether the run ended in a usable state. Exhausted
// budgets count as success; only numerical corruption, a failed solve and a
// residual-free first iteration are failures.
func (o *Output) Succeeded() bool {
	switch o.StopReason {
	case StopSystemHasNaNs, StopSolverFailed, StopNoResiduals:
		return false
	}
	return true
}

// Converged reports whether a convergence threshold fired.
func (o *Output) Converged() bool {
	switch o.StopReason {
	case StopMinDeltaNorm, StopMinGradNorm, StopMinError:
		return true
	}
	return false
}

// record appends one iteration to the history.
func (o *Output) record(err2, delta2 float64, accepted bool) {
	o.Errs2 = append(o.Errs2, err2)
	o.Deltas2 = append(o.Deltas2, delta2)
	o.Successes = append(o.Successes, accepted)
	o.NumIters++
}
