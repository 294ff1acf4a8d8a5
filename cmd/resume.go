package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/nlfit/internal/fit"
	"github.com/cwbudde/nlfit/internal/solve"
	"github.com/cwbudde/nlfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir string
	resumeIters   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a fit from its checkpoint",
	Long: `Loads the checkpoint for the given job, restarts the refinement
from the saved parameters and updates the checkpoint with the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Max additional iterations (0 = use checkpointed config)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	config := checkpoint.Config
	slog.Info("Resuming job",
		"job_id", jobID,
		"iteration", checkpoint.Iteration,
		"best_cost", checkpoint.BestCost,
	)

	var points []fit.Point
	if config.DataPath != "" {
		points, err = fit.ReadCSV(config.DataPath)
		if err != nil {
			return fmt.Errorf("failed to load data: %w", err)
		}
	} else {
		points = fit.CirclePoints(config.Points, 0, 0, 10, config.Noise, config.Seed)
	}

	sOpts := solve.DefaultOptions()
	sOpts.MaxIters = config.Iters
	if resumeIters > 0 {
		sOpts.MaxIters = resumeIters
	}

	start := fit.DecodeCircle(checkpoint.BestParams)
	result, err := fit.FitFrom(points, start, fit.FitOptions{
		Method: config.Solver,
		Solver: &sOpts,
	})
	if err != nil {
		return fmt.Errorf("resume fit failed: %w", err)
	}

	// The checkpoint keeps whichever parameters scored best.
	bestParams := checkpoint.BestParams
	bestCost := checkpoint.BestCost
	if result.FinalCost <= bestCost {
		bestParams = result.Circle.Encode()
		bestCost = result.FinalCost
	}

	updated := store.NewCheckpoint(
		jobID,
		bestParams,
		bestCost,
		checkpoint.InitialCost,
		checkpoint.Iteration+result.Output.NumIters,
		config,
	)
	updated.StopReason = result.Output.StopReason.String()
	if err := checkpointStore.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	fmt.Printf("%s\n", result.Circle.String())
	fmt.Printf("cost: %.6g -> %.6g after %d more iterations (%s)\n",
		checkpoint.BestCost, bestCost, result.Output.NumIters, result.Output.StopReason)
	return nil
}
