package store

import (
	"fmt"
	"time"
)

// JobConfig holds configuration for a fitting job (checkpoint copy).
// This avoids import cycles with the server package.
type JobConfig struct {
	DataPath           string  `json:"dataPath,omitempty"`           // CSV file with samples, empty for synthetic data
	Points             int     `json:"points,omitempty"`             // Synthetic sample count when DataPath is empty
	Noise              float64 `json:"noise,omitempty"`              // Synthetic noise standard deviation
	Solver             string  `json:"solver"`                       // gn, gn-dense, gd
	Iters              int     `json:"iters"`                        // Refinement iteration cap
	GlobalInit         bool    `json:"globalInit,omitempty"`         // Seed with a global search before refining
	PopSize            int     `json:"popSize,omitempty"`            // Global search population size
	Seed               int64   `json:"seed"`                         // RNG seed for data generation and search
	CheckpointInterval int     `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint represents a saved fit state that can be resumed later.
// All fields are serialized to JSON for persistence.
//
// The checkpoint saves the best parameters found so far, not the internal
// refinement state (Hessian, failure counters, step history). Resuming
// restarts the refinement loop from the saved parameters: the best cost can
// never get worse, but the iteration trace will differ from an
// uninterrupted run.
type Checkpoint struct {
	// JobID is the unique identifier for this fitting job
	JobID string `json:"jobId"`

	// BestParams contains the circle parameters (cx, cy, r) that produced
	// the best (lowest) cost so far
	BestParams []float64 `json:"bestParams"`

	// BestCost is the Euclidean residual norm achieved by BestParams
	BestCost float64 `json:"bestCost"`

	// InitialCost is the residual norm at the starting guess, in the same
	// unit as BestCost, for improvement tracking
	InitialCost float64 `json:"initialCost"`

	// Iteration is the refinement iteration count when this checkpoint was created
	Iteration int `json:"iteration"`

	// StopReason records why the refinement stopped, empty while running
	StopReason string `json:"stopReason,omitempty"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume
	Config JobConfig `json:"config"`
}

// paramsPerCircle mirrors the fit package's parameter layout: cx, cy, r.
const paramsPerCircle = 3

// CheckpointInfo contains metadata about a checkpoint without the full
// parameter data. Used for listing checkpoints efficiently.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	BestCost  float64   `json:"bestCost"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Solver    string    `json:"solver"`
	DataPath  string    `json:"dataPath,omitempty"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestCost:  c.BestCost,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Solver:    c.Config.Solver,
		DataPath:  c.Config.DataPath,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) != paramsPerCircle {
		return &ValidationError{Field: "BestParams", Reason: fmt.Sprintf("length must be %d", paramsPerCircle)}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Solver == "" {
		return &ValidationError{Field: "Config.Solver", Reason: "cannot be empty"}
	}
	if c.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	if c.Config.DataPath == "" && c.Config.Points <= 0 {
		return &ValidationError{Field: "Config", Reason: "needs a data path or a synthetic point count"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given
// config. Returns an error if the configs describe different problems.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.DataPath != config.DataPath {
		return &CompatibilityError{
			Field:    "DataPath",
			Expected: c.Config.DataPath,
			Actual:   config.DataPath,
		}
	}
	if c.Config.Solver != config.Solver {
		return &CompatibilityError{
			Field:    "Solver",
			Expected: c.Config.Solver,
			Actual:   config.Solver,
		}
	}
	if c.Config.DataPath == "" {
		if c.Config.Points != config.Points {
			return &CompatibilityError{
				Field:    "Points",
				Expected: fmt.Sprintf("%d", c.Config.Points),
				Actual:   fmt.Sprintf("%d", config.Points),
			}
		}
		if c.Config.Seed != config.Seed {
			return &CompatibilityError{
				Field:    "Seed",
				Expected: fmt.Sprintf("%d", c.Config.Seed),
				Actual:   fmt.Sprintf("%d", config.Seed),
			}
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
