// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a tailoring job
type JobStatus string

// Job statuses, in forward order
const (
	StatusQueued     JobStatus = "QUEUED"
	StatusRunning    JobStatus = "RUNNING"
	StatusValidating JobStatus = "VALIDATING"
	StatusRendering  JobStatus = "RENDERING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether no further progress is expected for the status
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusValidating, StatusRendering, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Stage names a step of the tailoring pipeline
type Stage string

// Pipeline stages
const (
	StageParse    Stage = "parse"
	StageScreen   Stage = "screen"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageRender   Stage = "render"
	StagePersist  Stage = "persist"
)

// transitions lists the statuses reachable from each status. A status may
// transition to itself so stage milestones (LastStage) can be recorded
// without changing the coarse status.
var transitions = map[JobStatus][]JobStatus{
	StatusQueued:     {StatusRunning, StatusFailed},
	StatusRunning:    {StatusRunning, StatusValidating, StatusFailed},
	StatusValidating: {StatusRendering, StatusFailed},
	StatusRendering:  {StatusRendering, StatusCompleted, StatusFailed},
	StatusFailed:     {StatusQueued},
	StatusCompleted:  nil,
}

// CanTransition reports whether a job may move from one status to another.
// FAILED -> QUEUED is the explicit operator restart; everything else is forward only.
func CanTransition(from, to JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// JobOptions holds per-job switches supplied at submission
type JobOptions struct {
	RunComprehend bool `json:"runComprehend"`
}

// JobInputs holds blob store keys for the job's inputs
type JobInputs struct {
	ResumeRef         string     `json:"resumeRef"`
	JobDescriptionRef string     `json:"jobDescriptionRef"`
	TemplateRef       string     `json:"templateRef,omitempty"`
	Options           JobOptions `json:"options"`
}

// JobResult is populated only when a job completes
type JobResult struct {
	DocxRef          string            `json:"docxRef,omitempty"`
	PdfRef           string            `json:"pdfRef,omitempty"`
	ValidationReport *ValidationReport `json:"validationReport,omitempty"`
}

// JobError is populated only when a job fails
type JobError struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Job is one tailoring request tracked end-to-end by tenant and id
type Job struct {
	TenantID    string     `json:"tenantId"`
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	LastStage   Stage      `json:"lastStage,omitempty"`
	Inputs      JobInputs  `json:"inputs"`
	Result      *JobResult `json:"result,omitempty"`
	Error       *JobError  `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CheckTerminal verifies that a terminal job carries exactly one of result or error
func (j *Job) CheckTerminal() error {
	if !j.Status.IsTerminal() {
		return nil
	}
	hasResult := j.Result != nil
	hasError := j.Error != nil
	if hasResult == hasError {
		return fmt.Errorf("job %s/%s is %s with result=%t error=%t", j.TenantID, j.JobID, j.Status, hasResult, hasError)
	}
	if j.Status == StatusCompleted && !hasResult {
		return fmt.Errorf("job %s/%s completed without a result", j.TenantID, j.JobID)
	}
	if j.Status == StatusFailed && !hasError {
		return fmt.Errorf("job %s/%s failed without an error", j.TenantID, j.JobID)
	}
	return nil
}

// JobPatch is a partial update to a job. Nil fields are left unchanged.
type JobPatch struct {
	Status    *JobStatus `json:"status,omitempty"`
	LastStage *Stage     `json:"lastStage,omitempty"`
	Result    *JobResult `json:"result,omitempty"`
	Error     *JobError  `json:"error,omitempty"`
	// ClearOutcome removes any result and error (used by restart)
	ClearOutcome bool       `json:"clearOutcome,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	// ExpectStatus makes the update conditional on the current status
	ExpectStatus *JobStatus `json:"expectStatus,omitempty"`
}

// Apply returns a copy of job with the patch applied. It enforces the
// transition table and the terminal result/error invariant but does not
// check ExpectStatus; ledgers do that atomically against stored state.
// A terminal job accepts no patch other than the FAILED -> QUEUED restart.
func (p JobPatch) Apply(job Job, now time.Time) (Job, error) {
	if job.Status.IsTerminal() && !p.isRestart(job.Status) {
		return job, &StatusConflictError{TenantID: job.TenantID, JobID: job.JobID, Actual: job.Status, Reason: "job is terminal"}
	}

	next := job
	if p.Status != nil && *p.Status != job.Status {
		if !CanTransition(job.Status, *p.Status) {
			return job, &StatusConflictError{TenantID: job.TenantID, JobID: job.JobID, Expected: job.Status, Actual: *p.Status, Reason: "illegal transition"}
		}
		next.Status = *p.Status
	}
	if p.ClearOutcome {
		next.Result = nil
		next.Error = nil
		next.CompletedAt = nil
	}
	if p.LastStage != nil {
		next.LastStage = *p.LastStage
	}
	if p.Result != nil {
		r := *p.Result
		next.Result = &r
	}
	if p.Error != nil {
		e := *p.Error
		next.Error = &e
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		next.CompletedAt = &t
	}
	next.UpdatedAt = now
	if err := next.CheckTerminal(); err != nil {
		return job, err
	}
	return next, nil
}

// isRestart reports whether p moves a FAILED job back to QUEUED and drops its outcome
func (p JobPatch) isRestart(from JobStatus) bool {
	return from == StatusFailed && p.Status != nil && *p.Status == StatusQueued && p.ClearOutcome
}

// StatusPtr returns a pointer to s
func StatusPtr(s JobStatus) *JobStatus { return &s }

// StagePtr returns a pointer to s
func StagePtr(s Stage) *Stage { return &s }
