package server

import (
	"fmt"

	"github.com/cwbudde/nlfit/internal/fit"
)

// defaultCircle is the synthetic ground truth used when a job carries no
// data file: unit circle scaled up to keep noise relatively small.
var defaultCircle = fit.CircleParams{CX: 0, CY: 0, R: 10}

// loadPoints resolves a job's data source: a CSV file when DataPath is set,
// otherwise a seeded synthetic sample.
func loadPoints(config JobConfig) ([]fit.Point, error) {
	if config.DataPath != "" {
		points, err := fit.ReadCSV(config.DataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load data: %w", err)
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("data file %s contains no points", config.DataPath)
		}
		return points, nil
	}

	if config.Points <= 0 {
		return nil, fmt.Errorf("job needs a data path or a synthetic point count")
	}
	points := fit.CirclePoints(config.Points, defaultCircle.CX, defaultCircle.CY, defaultCircle.R, config.Noise, config.Seed)
	return points, nil
}

// applyConfigDefaults fills unset job configuration fields.
func applyConfigDefaults(config *JobConfig) {
	if config.Solver == "" {
		config.Solver = "gn"
	}
	if config.Iters <= 0 {
		config.Iters = 100
	}
	if config.PopSize <= 0 {
		config.PopSize = 20
	}
	if config.DataPath == "" && config.Points <= 0 {
		config.Points = 100
	}
}
