package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/types"
)

const jobColumns = `tenant_id, job_id, status, last_stage, inputs, result, error, created_at, updated_at, completed_at`

// JobLedger stores jobs in the jobs table. Updates lock the row, apply the
// patch in Go and write back conditioned on the status that was read.
type JobLedger struct {
	db  *DB
	now func() time.Time
}

// NewJobLedger creates a Postgres backed ledger
func NewJobLedger(db *DB) *JobLedger {
	return &JobLedger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Put inserts job, or upserts it when overwrite is set
func (l *JobLedger) Put(ctx context.Context, job *types.Job, overwrite bool) error {
	if err := ledger.Check(job); err != nil {
		return err
	}
	row, err := encodeJob(job)
	if err != nil {
		return err
	}

	query := `INSERT INTO jobs (` + jobColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (tenant_id, job_id) DO NOTHING`
	if overwrite {
		query = `INSERT INTO jobs (` + jobColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (tenant_id, job_id) DO UPDATE SET
		   status = EXCLUDED.status, last_stage = EXCLUDED.last_stage, inputs = EXCLUDED.inputs,
		   result = EXCLUDED.result, error = EXCLUDED.error, created_at = EXCLUDED.created_at,
		   updated_at = EXCLUDED.updated_at, completed_at = EXCLUDED.completed_at`
	}

	tag, err := l.db.pool.Exec(ctx, query, row.args()...)
	if err != nil {
		return fmt.Errorf("failed to put job %s/%s: %w", job.TenantID, job.JobID, err)
	}
	if tag.RowsAffected() == 0 {
		return &types.AlreadyExistsError{TenantID: job.TenantID, JobID: job.JobID}
	}
	return nil
}

// Get returns the stored job
func (l *JobLedger) Get(ctx context.Context, tenantID, jobID string) (*types.Job, error) {
	job, err := scanJob(l.db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE tenant_id = $1 AND job_id = $2`,
		tenantID, jobID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.NotFound(tenantID, jobID)
		}
		return nil, fmt.Errorf("failed to get job %s/%s: %w", tenantID, jobID, err)
	}
	return job, nil
}

// Update applies patch under a row lock and returns the stored result
func (l *JobLedger) Update(ctx context.Context, tenantID, jobID string, patch types.JobPatch) (*types.Job, error) {
	tx, err := l.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanJob(tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE tenant_id = $1 AND job_id = $2 FOR UPDATE`,
		tenantID, jobID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.NotFound(tenantID, jobID)
		}
		return nil, fmt.Errorf("failed to lock job %s/%s: %w", tenantID, jobID, err)
	}

	next, err := ledger.ApplyPatch(*current, patch, l.now())
	if err != nil {
		return nil, err
	}
	row, err := encodeJob(&next)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = $3, last_stage = $4, result = $5, error = $6,
		        updated_at = $7, completed_at = $8
		 WHERE tenant_id = $1 AND job_id = $2 AND status = $9`,
		tenantID, jobID, string(next.Status), string(next.LastStage),
		row.result, row.errJSON, next.UpdatedAt, next.CompletedAt,
		string(current.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s/%s: %w", tenantID, jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &types.StatusConflictError{TenantID: tenantID, JobID: jobID, Expected: current.Status, Reason: "concurrent update"}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job %s/%s: %w", tenantID, jobID, err)
	}
	return &next, nil
}

// List returns jobs of any tenant in one of statuses, least recently updated first
func (l *JobLedger) List(ctx context.Context, statuses ...types.JobStatus) ([]*types.Job, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := l.db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ANY($1) ORDER BY updated_at, tenant_id, job_id`,
		names,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

type jobRow struct {
	job     *types.Job
	inputs  []byte
	result  []byte
	errJSON []byte
}

func (r jobRow) args() []any {
	return []any{
		r.job.TenantID, r.job.JobID, string(r.job.Status), string(r.job.LastStage),
		r.inputs, r.result, r.errJSON,
		r.job.CreatedAt, r.job.UpdatedAt, r.job.CompletedAt,
	}
}

func encodeJob(job *types.Job) (jobRow, error) {
	row := jobRow{job: job}
	var err error
	if row.inputs, err = json.Marshal(job.Inputs); err != nil {
		return row, fmt.Errorf("failed to marshal inputs: %w", err)
	}
	if job.Result != nil {
		if row.result, err = json.Marshal(job.Result); err != nil {
			return row, fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	if job.Error != nil {
		if row.errJSON, err = json.Marshal(job.Error); err != nil {
			return row, fmt.Errorf("failed to marshal error: %w", err)
		}
	}
	return row, nil
}

func scanJob(row pgx.Row) (*types.Job, error) {
	var job types.Job
	var status, lastStage string
	var inputsJSON, resultJSON, errJSON []byte
	if err := row.Scan(&job.TenantID, &job.JobID, &status, &lastStage,
		&inputsJSON, &resultJSON, &errJSON,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt); err != nil {
		return nil, err
	}
	job.Status = types.JobStatus(status)
	job.LastStage = types.Stage(lastStage)

	if err := json.Unmarshal(inputsJSON, &job.Inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
	}
	if resultJSON != nil {
		job.Result = &types.JobResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	if errJSON != nil {
		job.Error = &types.JobError{}
		if err := json.Unmarshal(errJSON, job.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error: %w", err)
		}
	}
	return &job, nil
}
