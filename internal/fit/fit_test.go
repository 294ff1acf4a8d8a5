package fit

import (
	"math"
	"testing"

	"github.com/cwbudde/nlfit/internal/solve"
)

func TestFitRecoversExactCircle(t *testing.T) {
	points := CirclePoints(50, 2, -3, 5, 0, 11)

	res, err := Fit(points, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if math.Abs(res.Circle.CX-2) > 1e-5 ||
		math.Abs(res.Circle.CY+3) > 1e-5 ||
		math.Abs(res.Circle.R-5) > 1e-5 {
		t.Errorf("recovered %+v, want center (2, -3) radius 5", res.Circle)
	}
	if !res.Output.Succeeded() {
		t.Errorf("stop reason %v marks the run failed", res.Output.StopReason)
	}
	if res.FinalCost > res.InitialCost {
		t.Errorf("final cost %v exceeds initial %v", res.FinalCost, res.InitialCost)
	}
}

func TestFitNoisyCircle(t *testing.T) {
	points := CirclePoints(200, 10, 10, 4, 0.05, 23)

	res, err := Fit(points, FitOptions{})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// With mild noise the estimate stays close to the generating circle.
	if math.Abs(res.Circle.CX-10) > 0.1 ||
		math.Abs(res.Circle.CY-10) > 0.1 ||
		math.Abs(res.Circle.R-4) > 0.1 {
		t.Errorf("recovered %+v, want approximately center (10, 10) radius 4", res.Circle)
	}
}

func TestFitEmptyData(t *testing.T) {
	if _, err := Fit(nil, FitOptions{}); err != ErrNoPoints {
		t.Errorf("got %v, want ErrNoPoints", err)
	}
}

func TestFitFromContinues(t *testing.T) {
	points := CirclePoints(50, 0, 0, 2, 0, 5)
	start := CircleParams{CX: 0.5, CY: -0.5, R: 1}

	res, err := FitFrom(points, start, FitOptions{})
	if err != nil {
		t.Fatalf("FitFrom failed: %v", err)
	}
	if math.Abs(res.Circle.CX) > 1e-5 || math.Abs(res.Circle.CY) > 1e-5 || math.Abs(res.Circle.R-2) > 1e-5 {
		t.Errorf("recovered %+v, want center (0, 0) radius 2", res.Circle)
	}
}

// Starting a noisy fit at the generating circle leaves little room to
// improve: the reported costs must still agree in unit, with the final
// cost at or below the initial one.
func TestFitCostUnitsComparable(t *testing.T) {
	points := CirclePoints(100, 0, 0, 10, 0.05, 31)
	start := CircleParams{CX: 0, CY: 0, R: 10}

	res, err := FitFrom(points, start, FitOptions{})
	if err != nil {
		t.Fatalf("FitFrom failed: %v", err)
	}

	var sum float64
	for _, r := range Residuals(points, start) {
		sum += r * r
	}
	wantInitial := math.Sqrt(sum)

	if math.Abs(res.InitialCost-wantInitial) > 1e-12 {
		t.Errorf("InitialCost = %v, want residual norm %v", res.InitialCost, wantInitial)
	}
	if res.FinalCost > res.InitialCost {
		t.Errorf("FinalCost %v exceeds InitialCost %v for a run that only improves",
			res.FinalCost, res.InitialCost)
	}
}

func TestFitFromUnitCircleGuess(t *testing.T) {
	points := CirclePoints(50, 1, 0.5, 2, 0, 17)

	res, err := FitFrom(points, CircleParams{CX: 0, CY: 0, R: 1}, FitOptions{})
	if err != nil {
		t.Fatalf("FitFrom failed: %v", err)
	}
	if math.Abs(res.Circle.CX-1) > 1e-5 ||
		math.Abs(res.Circle.CY-0.5) > 1e-5 ||
		math.Abs(res.Circle.R-2) > 1e-5 {
		t.Errorf("recovered %+v, want center (1, 0.5) radius 2", res.Circle)
	}
	if !res.Output.Succeeded() {
		t.Errorf("stop reason %v marks the run failed", res.Output.StopReason)
	}
}

func TestFitSolverOverride(t *testing.T) {
	points := CirclePoints(50, 1, 1, 3, 0, 8)

	opts := solve.DefaultOptions()
	opts.MaxIters = 0
	opts.LogX = false

	res, err := Fit(points, FitOptions{Solver: &opts})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	// One attempt is allowed past a zero iteration cap.
	if res.Output.NumIters != 1 {
		t.Errorf("NumIters = %d, want 1", res.Output.NumIters)
	}
}

func TestFitDenseInverseMatchesCholesky(t *testing.T) {
	points := CirclePoints(60, 5, 5, 2, 0.01, 13)

	chol, err := Fit(points, FitOptions{Method: MethodGN})
	if err != nil {
		t.Fatal(err)
	}
	dense, err := Fit(points, FitOptions{Method: MethodGNDense})
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(chol.Circle.CX-dense.Circle.CX) > 1e-8 ||
		math.Abs(chol.Circle.CY-dense.Circle.CY) > 1e-8 ||
		math.Abs(chol.Circle.R-dense.Circle.R) > 1e-8 {
		t.Errorf("solvers disagree: %+v vs %+v", chol.Circle, dense.Circle)
	}
}

func TestFitGradientDescent(t *testing.T) {
	points := CirclePoints(100, 1, 2, 3, 0, 19)

	opts := solve.DefaultOptions()
	opts.MaxIters = 2000
	opts.MinGradNorm2 = 1e-16
	opts.LogX = false

	res, err := Fit(points, FitOptions{Method: MethodGD, Solver: &opts})
	if err != nil {
		t.Fatal(err)
	}
	// First-order steps converge slower, so the tolerance is looser.
	if math.Abs(res.Circle.CX-1) > 1e-2 || math.Abs(res.Circle.CY-2) > 1e-2 || math.Abs(res.Circle.R-3) > 1e-2 {
		t.Errorf("recovered %+v, want center (1, 2) radius 3", res.Circle)
	}
}

func TestFitUnknownMethod(t *testing.T) {
	points := CirclePoints(10, 0, 0, 1, 0, 1)
	if _, err := Fit(points, FitOptions{Method: "newton"}); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestFitMultiStartFindsBest(t *testing.T) {
	points := CirclePoints(80, -4, 6, 2.5, 0.02, 31)

	res, err := FitMultiStart(points, 5, 17, FitOptions{}, DefaultConvergenceConfig())
	if err != nil {
		t.Fatalf("FitMultiStart failed: %v", err)
	}
	if math.Abs(res.Circle.CX+4) > 0.1 || math.Abs(res.Circle.CY-6) > 0.1 || math.Abs(res.Circle.R-2.5) > 0.1 {
		t.Errorf("recovered %+v, want approximately center (-4, 6) radius 2.5", res.Circle)
	}
}
