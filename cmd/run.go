package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/nlfit/internal/fit"
	"github.com/cwbudde/nlfit/internal/opt"
	"github.com/cwbudde/nlfit/internal/solve"
	"github.com/spf13/cobra"
)

var (
	dataPath   string
	numPoints  int
	noise      float64
	solverName string
	iters      int
	globalInit bool
	popSize    int
	seed       int64
	starts     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single circle fit",
	Long: `Fits a circle to 2D point data and prints the estimate.
Data comes from a CSV file (--data) or a seeded synthetic sample.`,
	RunE: runFit,
}

func init() {
	runCmd.Flags().StringVar(&dataPath, "data", "", "CSV file with x,y samples (omit for synthetic data)")
	runCmd.Flags().IntVar(&numPoints, "points", 100, "Synthetic sample count")
	runCmd.Flags().Float64Var(&noise, "noise", 0.05, "Synthetic noise standard deviation")
	runCmd.Flags().StringVar(&solverName, "solver", fit.MethodGN, "Solver: gn, gn-dense, gd")
	runCmd.Flags().IntVar(&iters, "iters", 100, "Max refinement iterations")
	runCmd.Flags().BoolVar(&globalInit, "global-init", false, "Seed with an evolutionary global search")
	runCmd.Flags().IntVar(&popSize, "pop", 20, "Global search population size")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().IntVar(&starts, "starts", 1, "Number of multi-start restarts")

	rootCmd.AddCommand(runCmd)
}

func loadRunPoints() ([]fit.Point, error) {
	if dataPath != "" {
		points, err := fit.ReadCSV(dataPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded data", "path", dataPath, "points", len(points))
		return points, nil
	}

	points := fit.CirclePoints(numPoints, 0, 0, 10, noise, seed)
	slog.Info("Generated synthetic data", "points", numPoints, "noise", noise, "seed", seed)
	return points, nil
}

func runFit(cmd *cobra.Command, args []string) error {
	points, err := loadRunPoints()
	if err != nil {
		return fmt.Errorf("failed to load points: %w", err)
	}

	sOpts := solve.DefaultOptions()
	sOpts.MaxIters = iters
	sOpts.LogEnabled = logLevel == "debug"

	fitOpts := fit.FitOptions{
		Method: solverName,
		Solver: &sOpts,
	}
	if globalInit {
		fitOpts.GlobalInit = opt.NewMayfly(iters, popSize, seed)
	}

	start := time.Now()
	var result *fit.Result
	if starts > 1 {
		result, err = fit.FitMultiStart(points, starts, seed, fitOpts, fit.DefaultConvergenceConfig())
	} else {
		result, err = fit.Fit(points, fitOpts)
	}
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}
	elapsed := time.Since(start)

	out := result.Output
	slog.Info("Fit complete",
		"elapsed", elapsed,
		"initial_cost", result.InitialCost,
		"final_cost", result.FinalCost,
		"iterations", out.NumIters,
		"failures", out.NumFailures,
		"stop", out.StopReason.String(),
	)

	fmt.Printf("%s\n", result.Circle.String())
	fmt.Printf("cost: %.6g -> %.6g in %d iterations (%s)\n",
		result.InitialCost, result.FinalCost, out.NumIters, out.StopReason)
	if !out.Succeeded() {
		return fmt.Errorf("refinement failed: %s", out.StopReason)
	}
	return nil
}
