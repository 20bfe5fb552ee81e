// Package ledger defines the durable job status store and its in-memory implementation.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Ledger persists jobs keyed by tenant and job id. Updates are atomic per job;
// a patch carrying ExpectStatus only applies while the stored status matches.
type Ledger interface {
	Put(ctx context.Context, job *types.Job, overwrite bool) error
	Update(ctx context.Context, tenantID, jobID string, patch types.JobPatch) (*types.Job, error)
	Get(ctx context.Context, tenantID, jobID string) (*types.Job, error)
	// List returns the jobs of every tenant whose status is one of statuses,
	// least recently updated first
	List(ctx context.Context, statuses ...types.JobStatus) ([]*types.Job, error)
}

// Check validates a job record against the job schema
func Check(job *types.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := schemas.Validate(schemas.JobSchema, data); err != nil {
		return fmt.Errorf("job %s/%s rejected: %w", job.TenantID, job.JobID, err)
	}
	return nil
}

// ApplyPatch checks the compare-and-set condition and applies patch to current.
// Implementations call it while holding their per-job lock or row lock.
func ApplyPatch(current types.Job, patch types.JobPatch, now time.Time) (types.Job, error) {
	if patch.ExpectStatus != nil && *patch.ExpectStatus != current.Status {
		return current, &types.StatusConflictError{
			TenantID: current.TenantID,
			JobID:    current.JobID,
			Expected: *patch.ExpectStatus,
			Actual:   current.Status,
		}
	}
	next, err := patch.Apply(current, now)
	if err != nil {
		return current, err
	}
	if err := Check(&next); err != nil {
		return current, err
	}
	return next, nil
}

// NotFound builds the error returned for an unknown job
func NotFound(tenantID, jobID string) error {
	return &types.NotFoundError{Kind: "job", ID: tenantID + "/" + jobID}
}
