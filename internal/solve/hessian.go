package solve

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hessian is the accumulator a residual callback fills with the JᵗJ
// approximation. Depending on the solver's storage it is backed by a dense
// matrix or a sparse map; callers accumulate the same way through either.
type Hessian interface {
	// Dims returns the side length of the square matrix.
	Dims() int

	// Add accumulates v into entry (i, j).
	Add(i, j int, v float64)

	// At returns the current value of entry (i, j).
	At(i, j int) float64
}

// denseHessian accumulates into a general dense matrix. When the caller
// fills only the upper triangle, the solver mirrors it before factorizing.
type denseHessian struct {
	m *mat.Dense
}

func newDenseHessian(n int) *denseHessian {
	h := &denseHessian{}
	if n > 0 {
		h.m = mat.NewDense(n, n, nil)
	}
	return h
}

func (h *denseHessian) Dims() int {
	if h.m == nil {
		return 0
	}
	return h.m.RawMatrix().Rows
}

func (h *denseHessian) Add(i, j int, v float64) {
	h.m.Set(i, j, h.m.At(i, j)+v)
}

func (h *denseHessian) At(i, j int) float64 { return h.m.At(i, j) }

func (h *denseHessian) resize(n int) {
	if h.Dims() != n && n > 0 {
		h.m = mat.NewDense(n, n, nil)
	}
}

func (h *denseHessian) zero() {
	if h.m != nil {
		h.m.Zero()
	}
}

// mirrorUpper copies the strict upper triangle onto the lower one, turning
// an upper-only accumulation into full symmetric storage.
func (h *denseHessian) mirrorUpper() {
	n := h.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			h.m.Set(j, i, h.m.At(i, j))
		}
	}
}

// symmetric returns the matrix as symmetric storage for factorization. The
// upper triangle is authoritative.
func (h *denseHessian) symmetric() *mat.SymDense {
	n := h.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, h.m.At(i, j))
		}
	}
	return s
}

// diagMin returns the smallest absolute diagonal entry.
func (h *denseHessian) diagMin() float64 {
	n := h.Dims()
	if n == 0 {
		return 0
	}
	min := abs(h.m.At(0, 0))
	for i := 1; i < n; i++ {
		if d := abs(h.m.At(i, i)); d < min {
			min = d
		}
	}
	return min
}

// sparseHessian accumulates into a map keyed by (row, col). The upper
// triangle is authoritative, same as the dense storage. Factorization
// converts to dense symmetric storage; at the dimensions this engine targets
// that conversion is cheap and keeps the solve on the same SPD path.
type sparseHessian struct {
	n    int
	data map[[2]int]float64
}

func newSparseHessian(n int) *sparseHessian {
	return &sparseHessian{n: n, data: make(map[[2]int]float64)}
}

func (h *sparseHessian) Dims() int { return h.n }

func (h *sparseHessian) Add(i, j int, v float64) {
	h.data[[2]int{i, j}] += v
}

func (h *sparseHessian) At(i, j int) float64 {
	return h.data[[2]int{i, j}]
}

func (h *sparseHessian) resize(n int) {
	if h.n != n {
		h.n = n
		h.data = make(map[[2]int]float64)
	}
}

func (h *sparseHessian) zero() {
	clear(h.data)
}

func (h *sparseHessian) mirrorUpper() {} // storage is already symmetric

func (h *sparseHessian) symmetric() *mat.SymDense {
	s := mat.NewSymDense(h.n, nil)
	for k, v := range h.data {
		if k[0] <= k[1] {
			s.SetSym(k[0], k[1], v)
		}
	}
	return s
}

func (h *sparseHessian) diagMin() float64 {
	if h.n == 0 {
		return 0
	}
	min := abs(h.data[[2]int{0, 0}])
	for i := 1; i < h.n; i++ {
		if d := abs(h.data[[2]int{i, i}]); d < min {
			min = d
		}
	}
	return min
}

// hessStorage is the solver-side view of a Hessian accumulator.
type hessStorage interface {
	Hessian
	resize(n int)
	zero()
	mirrorUpper()
	symmetric() *mat.SymDense
	diagMin() float64
	finite() bool
}

func (h *denseHessian) finite() bool {
	if h.m == nil {
		return true
	}
	for _, v := range h.m.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (h *sparseHessian) finite() bool {
	for _, v := range h.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
