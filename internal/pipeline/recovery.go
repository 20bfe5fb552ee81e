package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/types"
)

// inFlight are the statuses of a job a worker has claimed
var inFlight = []types.JobStatus{types.StatusRunning, types.StatusValidating, types.StatusRendering}

// requeueRetry waits out a full dispatcher queue for roughly ten minutes
var requeueRetry = retry.Config{
	MaxRetries:  60,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Multiplier:  2.0,
	JitterRatio: 0.1,
}

// Requeue enqueues every QUEUED job, least recently updated first. The
// dispatcher queue lives in memory, so jobs accepted before a restart are
// only reachable again through this call.
func (s *Service) Requeue(ctx context.Context) (int, error) {
	jobs, err := s.ledger.List(ctx, types.StatusQueued)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range jobs {
		_, err := retry.Do(ctx, requeueRetry, s.log, func(ctx context.Context) (struct{}, error) {
			err := s.queue.Enqueue(ctx, job.TenantID, job.JobID)
			if errors.Is(err, ErrQueueFull) {
				return struct{}{}, retry.Retryable(err)
			}
			return struct{}{}, err
		})
		if err != nil {
			return requeued, fmt.Errorf("failed to requeue job %s/%s: %w", job.TenantID, job.JobID, err)
		}
		requeued++
	}
	if requeued > 0 {
		s.log.WithField("jobs", requeued).Info("requeued jobs left from a previous run")
	}
	return requeued, nil
}

// FailStale marks FAILED every in-flight job whose last ledger update is
// older than staleAfter. The failure names the stage the job was in, and the
// job can then be restarted like any other failure.
func (s *Service) FailStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	jobs, err := s.ledger.List(ctx, inFlight...)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-staleAfter)
	failed := 0
	for _, job := range jobs {
		if !job.UpdatedAt.Before(cutoff) {
			continue
		}
		stage := interruptedStage(job)
		_, err := s.ledger.Update(ctx, job.TenantID, job.JobID, types.JobPatch{
			Status: types.StatusPtr(types.StatusFailed),
			Error: &types.JobError{
				Stage:   stage,
				Message: "interrupted: no progress since " + job.UpdatedAt.UTC().Format(time.RFC3339),
			},
			ExpectStatus: types.StatusPtr(job.Status),
		})
		if types.IsStatusConflict(err) {
			// it moved on since the listing
			continue
		}
		if err != nil {
			return failed, err
		}
		failed++
		s.log.WithFields(logrus.Fields{
			"tenant_id": job.TenantID,
			"job_id":    job.JobID,
			"stage":     stage,
			"idle":      s.now().Sub(job.UpdatedAt).Round(time.Second),
		}).Warn("failed stalled job")
	}
	return failed, nil
}

// Recover requeues QUEUED jobs once and then sweeps for stalled jobs every
// half staleAfter until ctx is done. A staleAfter of zero skips the sweep.
// Errors are logged; recovery never stops the server.
func (s *Service) Recover(ctx context.Context, staleAfter time.Duration) {
	if _, err := s.Requeue(ctx); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Error("failed to requeue jobs")
	}
	if staleAfter <= 0 {
		return
	}

	sweep := func() {
		if _, err := s.FailStale(ctx, staleAfter); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("failed to sweep stalled jobs")
		}
	}
	sweep()

	ticker := time.NewTicker(staleAfter / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// interruptedStage is the stage that follows the job's last recorded one
func interruptedStage(job *types.Job) types.Stage {
	switch job.LastStage {
	case "":
		return types.StageParse
	case types.StageParse:
		if job.Inputs.Options.RunComprehend {
			return types.StageScreen
		}
		return types.StageGenerate
	case types.StageScreen:
		return types.StageGenerate
	case types.StageGenerate:
		return types.StageValidate
	case types.StageValidate:
		return types.StageRender
	default:
		return types.StagePersist
	}
}
