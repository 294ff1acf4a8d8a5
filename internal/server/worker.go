package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/nlfit/internal/fit"
	"github.com/cwbudde/nlfit/internal/opt"
	"github.com/cwbudde/nlfit/internal/solve"
	"github.com/cwbudde/nlfit/internal/store"
)

// runJob executes a fitting job in the background. If checkpointStore is not
// nil and the job has checkpointInterval > 0, periodic checkpoints are saved.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, dataDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "solver", job.Config.Solver, "data", job.Config.DataPath)

	points, err := loadPoints(job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	slog.Info("Loaded data", "job_id", jobID, "points", len(points))

	// Check for cancellation before starting the expensive part
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	var trace *store.TraceWriter
	if dataDir != "" {
		trace, err = store.NewTraceWriter(dataDir, jobID, false)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			defer trace.Close()
		}
	}

	sOpts := solve.DefaultOptions()
	sOpts.MaxIters = job.Config.Iters
	sOpts.LogX = false
	sOpts.Context = ctx

	fitOpts := fit.FitOptions{
		Method: job.Config.Solver,
		Solver: &sOpts,
		OnIteration: func(iter int, c fit.CircleParams, err2, delta2 float64, accepted bool) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.Iterations = iter + 1
				if accepted {
					j.BestCost = err2
					j.BestParams = c.Encode()
				}
			})
			if trace != nil {
				trace.Write(store.TraceEntry{
					Iteration: iter,
					Err2:      err2,
					Delta2:    delta2,
					Accepted:  accepted,
					Timestamp: time.Now(),
					Params:    c.Encode(),
				})
			}
		},
	}
	if job.Config.GlobalInit {
		fitOpts.GlobalInit = opt.NewMayfly(job.Config.Iters, job.Config.PopSize, job.Config.Seed)
	}

	// Progress and checkpoint monitors run alongside the fit
	start := time.Now()
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	} else {
		close(checkpointDone)
	}

	result, fitErr := fit.Fit(points, fitOpts)

	close(progressDone)
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		close(checkpointDone)
	}
	if trace != nil {
		trace.Flush()
	}
	elapsed := time.Since(start)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	if fitErr != nil {
		markJobFailed(jm, jobID, fitErr)
		return fitErr
	}
	if !result.Output.Succeeded() {
		err := fmt.Errorf("refinement failed: %s", result.Output.StopReason)
		jm.UpdateJob(jobID, func(j *Job) {
			j.BestParams = result.Circle.Encode()
			j.BestCost = result.FinalCost
			j.InitialCost = result.InitialCost
			j.Iterations = result.Output.NumIters
			j.StopReason = result.Output.StopReason.String()
		})
		markJobFailed(jm, jobID, err)
		return err
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestParams = result.Circle.Encode()
		j.BestCost = result.FinalCost
		j.InitialCost = result.InitialCost
		j.Iterations = result.Output.NumIters
		j.StopReason = result.Output.StopReason.String()
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Warn("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	ips := float64(result.Output.NumIters) / elapsed.Seconds()
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_cost", result.InitialCost,
		"best_cost", result.FinalCost,
		"stop", result.Output.StopReason.String(),
		"iterations_per_second", ips,
	)

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateCompleted,
		Iteration:  result.Output.NumIters,
		BestCost:   result.FinalCost,
		BestParams: result.Circle.Encode(),
		IPS:        ips,
		Timestamp:  time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during a fit
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:      jobID,
				State:      job.State,
				Iteration:  job.Iterations,
				BestCost:   job.BestCost,
				BestParams: job.BestParams,
				IPS:        job.IPS(),
				Timestamp:  time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during a fit
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Skip if no best params yet
	if len(job.BestParams) == 0 {
		slog.Debug("Skipping checkpoint, no best params yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestParams,
		job.BestCost,
		job.InitialCost,
		job.Iterations,
		job.Config,
	)
	checkpoint.StopReason = job.StopReason

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_cost", job.BestCost,
	)
	return nil
}
