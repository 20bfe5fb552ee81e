// Package pipeline runs tailoring jobs: the stage orchestrator, the job
// service used by the API, and the worker pool that executes queued jobs.
package pipeline

import "github.com/jonathan/resume-tailor/internal/types"

// Progress event kinds
const (
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventJobCompleted   = "job_completed"
	EventJobFailed      = "job_failed"
)

// ProgressEvent represents a progress update during job execution
type ProgressEvent struct {
	TenantID string      `json:"tenantId"`
	JobID    string      `json:"jobId"`
	Stage    types.Stage `json:"stage,omitempty"`
	Event    string      `json:"event"`
	Message  string      `json:"message,omitempty"`
	Content  any         `json:"content,omitempty"`
}

// ProgressCallback is called when job progress occurs
type ProgressCallback func(event ProgressEvent)
