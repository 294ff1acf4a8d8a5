package solve

import (
	"testing"
)

func TestScalarPlusEq(t *testing.T) {
	x := NewScalar(1.5)
	x.PlusEq([]float64{0.5})
	if x.Value != 2.0 {
		t.Errorf("Expected 2.0, got %f", x.Value)
	}

	// Zero delta is a no-op
	x.PlusEq([]float64{0})
	if x.Value != 2.0 {
		t.Errorf("Zero delta changed the value: %f", x.Value)
	}
}

func TestScalarPlusEqDimensionMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic on dimension mismatch")
		}
	}()
	x := NewScalar(1)
	x.PlusEq([]float64{1, 2})
}

func TestVectorPlusEq(t *testing.T) {
	v := NewVector(1, 2, 3)
	v.PlusEq([]float64{0.5, -1, 0})

	want := []float64{1.5, 1, 3}
	for i, w := range want {
		if v[i] != w {
			t.Errorf("Component %d: expected %f, got %f", i, w, v[i])
		}
	}
}

func TestVectorCloneIsIndependent(t *testing.T) {
	v := NewVector(1, 2)
	c := v.Clone().(Vector)

	v.PlusEq([]float64{10, 10})
	if c[0] != 1 || c[1] != 2 {
		t.Errorf("Clone was mutated: %v", c)
	}

	// Restore from the clone
	v.CopyFrom(c)
	if v[0] != 1 || v[1] != 2 {
		t.Errorf("CopyFrom did not restore: %v", v)
	}
}

func TestVectorCopyFromDimensionMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic on dimension mismatch")
		}
	}()
	v := NewVector(1, 2)
	v.CopyFrom(NewVector(1, 2, 3))
}

func TestClampVec(t *testing.T) {
	v := []float64{-5, 0.5, 5}
	if clampVec(v, 0) {
		t.Error("Zero bound should disable clamping")
	}
	if v[0] != -5 || v[2] != 5 {
		t.Errorf("Disabled clamp modified values: %v", v)
	}

	if !clampVec(v, 1) {
		t.Error("Expected clamping to be applied")
	}
	if v[0] != -1 || v[1] != 0.5 || v[2] != 1 {
		t.Errorf("Unexpected clamped values: %v", v)
	}
}

func TestNormalizeCostOrder(t *testing.T) {
	// sqrt first, then half, then average: sqrt(16) / 2 / 4 = 0.5
	c := Cost{Err2: 16, NumResiduals: 4}
	normalizeCost(&c, CostOptions{RootNorm: true, DownscaleBy2: true, Normalize: true})
	if c.Err2 != 0.5 {
		t.Errorf("Expected 0.5, got %f", c.Err2)
	}

	// No transforms leave the cost untouched
	c = Cost{Err2: 16, NumResiduals: 4}
	normalizeCost(&c, CostOptions{})
	if c.Err2 != 16 {
		t.Errorf("Expected 16, got %f", c.Err2)
	}
}

func TestEvalShapes(t *testing.T) {
	if c := ErrValue(2.5).cost(); c.Err2 != 2.5 || c.NumResiduals != 1 {
		t.Errorf("ErrValue: %+v", c)
	}
	if c := ErrCount(2.5, 7).cost(); c.Err2 != 2.5 || c.NumResiduals != 7 {
		t.Errorf("ErrCount: %+v", c)
	}
	// Euclidean norm of (3, 4) is 5
	if c := ResidualVec([]float64{3, 4}).cost(); c.Err2 != 5 || c.NumResiduals != 2 {
		t.Errorf("ResidualVec: %+v", c)
	}
}
