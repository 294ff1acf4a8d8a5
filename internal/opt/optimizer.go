package opt

// Optimizer defines a derivative-free global optimization algorithm. It is
// used to seed gradient-based refinement with a good starting point.
type Optimizer interface {
	// Run minimizes eval over the box [lower, upper] in dim dimensions
	// and returns the best parameters found with their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
