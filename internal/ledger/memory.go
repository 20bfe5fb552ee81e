package ledger

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

type key struct {
	tenantID string
	jobID    string
}

// MemoryLedger keeps jobs in process memory. Callers always receive copies.
type MemoryLedger struct {
	mu   sync.Mutex
	jobs map[key]types.Job
	now  func() time.Time
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		jobs: make(map[key]types.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Put stores job. Without overwrite an existing job id is an error.
func (l *MemoryLedger) Put(ctx context.Context, job *types.Job, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Check(job); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{job.TenantID, job.JobID}
	if _, exists := l.jobs[k]; exists && !overwrite {
		return &types.AlreadyExistsError{TenantID: job.TenantID, JobID: job.JobID}
	}
	l.jobs[k] = clone(*job)
	return nil
}

// Update applies patch atomically and returns the stored result
func (l *MemoryLedger) Update(ctx context.Context, tenantID, jobID string, patch types.JobPatch) (*types.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{tenantID, jobID}
	current, ok := l.jobs[k]
	if !ok {
		return nil, NotFound(tenantID, jobID)
	}
	next, err := ApplyPatch(current, patch, l.now())
	if err != nil {
		return nil, err
	}
	l.jobs[k] = clone(next)
	out := clone(next)
	return &out, nil
}

// Get returns a copy of the stored job
func (l *MemoryLedger) Get(ctx context.Context, tenantID, jobID string) (*types.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[key{tenantID, jobID}]
	if !ok {
		return nil, NotFound(tenantID, jobID)
	}
	out := clone(job)
	return &out, nil
}

// List returns copies of the jobs in any of statuses, least recently updated first
func (l *MemoryLedger) List(ctx context.Context, statuses ...types.JobStatus) ([]*types.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*types.Job
	for _, job := range l.jobs {
		if slices.Contains(statuses, job.Status) {
			c := clone(job)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].JobID < out[j].JobID
	})
	return out, nil
}

// clone copies the pointer fields of a job so stored state is never shared
func clone(job types.Job) types.Job {
	if job.Result != nil {
		r := *job.Result
		if r.ValidationReport != nil {
			report := *r.ValidationReport
			report.KeywordCoverage.Covered = slices.Clone(report.KeywordCoverage.Covered)
			report.KeywordCoverage.Missing = slices.Clone(report.KeywordCoverage.Missing)
			report.MissingSections = slices.Clone(report.MissingSections)
			report.IntroducedEntities = slices.Clone(report.IntroducedEntities)
			report.ChangeLog = slices.Clone(report.ChangeLog)
			r.ValidationReport = &report
		}
		job.Result = &r
	}
	if job.Error != nil {
		e := *job.Error
		job.Error = &e
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		job.CompletedAt = &t
	}
	return job
}
