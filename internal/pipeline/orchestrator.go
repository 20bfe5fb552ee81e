package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/pii"
	"github.com/jonathan/resume-tailor/internal/rendering"
	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/validation"
)

// ChangePIIDetected is the change log entry added when screening flags the job description
const ChangePIIDetected = "pii_detected"

// Config holds orchestrator timeouts and retry policy
type Config struct {
	// OutputPrefix is the artifact folder under each tenant
	OutputPrefix    string
	GenerateTimeout time.Duration
	RenderTimeout   time.Duration
	// FetchTimeout bounds each blob read including its retries
	FetchTimeout time.Duration
	FetchRetry   retry.Config
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		OutputPrefix:    storage.DefaultOutputPrefix,
		GenerateTimeout: 10 * time.Minute,
		RenderTimeout:   2 * time.Minute,
		FetchTimeout:    30 * time.Second,
		FetchRetry:      retry.DefaultConfig(),
	}
}

// Drafter produces a draft from resume and job description text
type Drafter interface {
	Generate(ctx context.Context, resume, jobDescription string) (*types.Draft, error)
}

// Renderer encodes draft sections into document artifacts
type Renderer interface {
	Render(ctx context.Context, sections types.Sections, templateBytes []byte) (*rendering.Artifacts, error)
}

// Deps are the collaborators the orchestrator drives
type Deps struct {
	Ledger   ledger.Ledger
	Blobs    storage.BlobStore
	Parser   parsing.Parser
	Screener pii.Screener
	Drafter  Drafter
	Renderer Renderer
	Log      logrus.FieldLogger
	Metrics  *Metrics
	// OnProgress is optional
	OnProgress ProgressCallback
}

// Orchestrator executes one job at a time per call. It holds no per-job
// state, so a single instance can serve many concurrent jobs.
type Orchestrator struct {
	cfg      Config
	ledger   ledger.Ledger
	blobs    storage.BlobStore
	reader   storage.BlobStore
	parser   parsing.Parser
	screener pii.Screener
	drafter  Drafter
	renderer Renderer
	log      logrus.FieldLogger
	metrics  *Metrics
	progress ProgressCallback
}

// NewOrchestrator creates an orchestrator. Blob reads go through a retrying
// wrapper; writes, model calls and ledger updates are attempted once.
func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Ledger == nil:
		return nil, fmt.Errorf("orchestrator requires a ledger")
	case deps.Blobs == nil:
		return nil, fmt.Errorf("orchestrator requires a blob store")
	case deps.Parser == nil:
		return nil, fmt.Errorf("orchestrator requires a parser")
	case deps.Drafter == nil:
		return nil, fmt.Errorf("orchestrator requires a drafter")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("orchestrator requires a renderer")
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = storage.DefaultOutputPrefix
	}
	return &Orchestrator{
		cfg:      cfg,
		ledger:   deps.Ledger,
		blobs:    deps.Blobs,
		reader:   storage.NewRetryingStore(deps.Blobs, cfg.FetchRetry, log),
		parser:   deps.Parser,
		screener: deps.Screener,
		drafter:  deps.Drafter,
		renderer: deps.Renderer,
		log:      log,
		metrics:  deps.Metrics,
		progress: deps.OnProgress,
	}, nil
}

// run carries one execution's intermediate values between stages
type run struct {
	job            *types.Job
	log            logrus.FieldLogger
	resume         *types.ParsedDocument
	jobDescription *types.ParsedDocument
	entities       []types.PIIEntity
	draft          *types.Draft
	report         *types.ValidationReport
	result         *types.JobResult
}

// Execute claims a QUEUED job and drives it to COMPLETED or FAILED. If the
// claim loses (the job is not QUEUED) the returned error is a
// *types.StatusConflictError and the job is left untouched. Every stage
// failure is recorded on the job and returned as a *types.StageFailure.
func (o *Orchestrator) Execute(ctx context.Context, tenantID, jobID string) (*types.Job, error) {
	job, err := o.ledger.Update(ctx, tenantID, jobID, types.JobPatch{
		Status:       types.StatusPtr(types.StatusRunning),
		ExpectStatus: types.StatusPtr(types.StatusQueued),
	})
	if err != nil {
		return nil, err
	}

	r := &run{
		job: job,
		log: o.log.WithFields(logrus.Fields{"tenant_id": tenantID, "job_id": jobID}),
	}
	r.log.Info("job started")

	steps := []struct {
		stage types.Stage
		fn    func(ctx context.Context, r *run) error
		skip  bool
	}{
		{stage: types.StageParse, fn: o.parse},
		{stage: types.StageScreen, fn: o.screen, skip: !job.Inputs.Options.RunComprehend || o.screener == nil},
		{stage: types.StageGenerate, fn: o.generate},
		{stage: types.StageValidate, fn: o.validate},
		{stage: types.StageRender, fn: o.render},
	}
	for _, step := range steps {
		if step.skip {
			continue
		}
		o.emit(r, step.stage, EventStageStarted, "")
		start := time.Now()
		err := runStep(ctx, r, step.fn)
		o.metrics.observeStage(step.stage, start, err)
		if err != nil {
			return o.fail(ctx, r, step.stage, err)
		}
		o.emit(r, step.stage, EventStageCompleted, "")
	}

	start := time.Now()
	var done *types.Job
	err = runStep(ctx, r, func(ctx context.Context, r *run) error {
		var err error
		done, err = o.Persist(ctx, tenantID, jobID, *r.result)
		return err
	})
	o.metrics.observeStage(types.StagePersist, start, err)
	if err != nil {
		return o.fail(ctx, r, types.StagePersist, err)
	}

	o.metrics.jobFinished(string(types.StatusCompleted))
	r.log.WithField("report_status", r.report.Status).Info("job completed")
	o.emit(r, types.StagePersist, EventJobCompleted, string(r.report.Status))
	return done, nil
}

func (o *Orchestrator) parse(ctx context.Context, r *run) error {
	resume, err := o.fetchAndParse(ctx, r.job.Inputs.ResumeRef)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	jd, err := o.fetchAndParse(ctx, r.job.Inputs.JobDescriptionRef)
	if err != nil {
		return fmt.Errorf("job description: %w", err)
	}
	r.resume, r.jobDescription = resume, jd
	r.log.WithFields(logrus.Fields{
		"resume_format": resume.Format,
		"resume_words":  len(resume.Words),
		"jd_words":      len(jd.Words),
	}).Debug("inputs parsed")

	return o.checkpoint(ctx, r, types.JobPatch{LastStage: types.StagePtr(types.StageParse)})
}

// screen never fails the job on a screener error; only the checkpoint write can
func (o *Orchestrator) screen(ctx context.Context, r *run) error {
	entities, err := o.screener.Screen(ctx, r.jobDescription.Text)
	if err != nil {
		r.log.WithError(err).Warn("PII screening failed")
	} else if len(entities) > 0 {
		r.entities = entities
		o.metrics.piiFound(entities)
		r.log.WithField("pii", pii.Summary(entities)).Warn("PII detected in job description")
	}
	return o.checkpoint(ctx, r, types.JobPatch{LastStage: types.StagePtr(types.StageScreen)})
}

func (o *Orchestrator) generate(ctx context.Context, r *run) error {
	genCtx, cancel := withTimeout(ctx, o.cfg.GenerateTimeout)
	defer cancel()

	draft, err := o.drafter.Generate(genCtx, r.resume.Text, r.jobDescription.Text)
	if err != nil {
		return err
	}
	r.draft = draft
	if len(draft.Degradations) > 0 {
		r.log.WithField("degradations", len(draft.Degradations)).Warn("draft generated with degraded stages")
	}

	return o.checkpoint(ctx, r, types.JobPatch{
		Status:    types.StatusPtr(types.StatusValidating),
		LastStage: types.StagePtr(types.StageGenerate),
	})
}

func (o *Orchestrator) validate(ctx context.Context, r *run) error {
	report, err := validation.ValidateDraft(r.draft, r.resume, r.jobDescription.Text)
	if err != nil {
		return err
	}
	if len(r.entities) > 0 {
		report.Append(ChangePIIDetected, formatSummary(pii.Summary(r.entities)),
			"Job description contains personal data; confirm it is safe to retain.")
	}
	r.report = report
	r.log.WithFields(logrus.Fields{
		"report_status":  report.Status,
		"coverage_score": report.KeywordCoverage.Score,
	}).Info("draft validated")

	return o.checkpoint(ctx, r, types.JobPatch{
		Status:    types.StatusPtr(types.StatusRendering),
		LastStage: types.StagePtr(types.StageValidate),
	})
}

func (o *Orchestrator) render(ctx context.Context, r *run) error {
	var templateBytes []byte
	if ref := r.job.Inputs.TemplateRef; ref != "" {
		data, err := o.fetch(ctx, ref)
		if err != nil {
			return fmt.Errorf("template: %w", err)
		}
		templateBytes = data
	}

	renderCtx, cancel := withTimeout(ctx, o.cfg.RenderTimeout)
	defer cancel()

	artifacts, err := o.renderer.Render(renderCtx, r.draft.Sections, templateBytes)
	if err != nil {
		return err
	}

	job := r.job
	docxRef := storage.ArtifactKey(job.TenantID, o.cfg.OutputPrefix, job.JobID, "docx")
	pdfRef := storage.ArtifactKey(job.TenantID, o.cfg.OutputPrefix, job.JobID, "pdf")
	if err := o.blobs.Put(renderCtx, docxRef, artifacts.DOCX, storage.ContentTypeDOCX); err != nil {
		return fmt.Errorf("failed to store docx: %w", err)
	}
	if err := o.blobs.Put(renderCtx, pdfRef, artifacts.PDF, storage.ContentTypePDF); err != nil {
		return fmt.Errorf("failed to store pdf: %w", err)
	}

	r.result = &types.JobResult{DocxRef: docxRef, PdfRef: pdfRef, ValidationReport: r.report}
	return o.checkpoint(ctx, r, types.JobPatch{LastStage: types.StagePtr(types.StageRender)})
}

// Persist records result and marks a RENDERING job COMPLETED. Calling it
// again with the same artifact references on a COMPLETED job returns the
// stored job unchanged.
func (o *Orchestrator) Persist(ctx context.Context, tenantID, jobID string, result types.JobResult) (*types.Job, error) {
	completedAt := time.Now().UTC()
	job, err := o.ledger.Update(ctx, tenantID, jobID, types.JobPatch{
		Status:       types.StatusPtr(types.StatusCompleted),
		LastStage:    types.StagePtr(types.StagePersist),
		Result:       &result,
		CompletedAt:  &completedAt,
		ExpectStatus: types.StatusPtr(types.StatusRendering),
	})
	if err == nil {
		return job, nil
	}
	if !types.IsStatusConflict(err) {
		return nil, err
	}

	current, getErr := o.ledger.Get(ctx, tenantID, jobID)
	if getErr != nil {
		return nil, err
	}
	if current.Status == types.StatusCompleted && sameArtifacts(current.Result, &result) {
		return current, nil
	}
	return nil, err
}

// runStep calls fn and returns a panic inside it as an error, so the job is
// failed at that stage instead of being left in flight
func runStep(ctx context.Context, r *run, fn func(ctx context.Context, r *run) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("stack", string(debug.Stack())).Error("stage panicked")
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, r)
}

// fail records the failure on the job and returns it as a stage failure.
// The ledger write ignores caller cancellation so a timed-out or cancelled
// run still leaves the job FAILED.
func (o *Orchestrator) fail(ctx context.Context, r *run, stage types.Stage, cause error) (*types.Job, error) {
	failure := &types.StageFailure{Stage: stage, Cause: cause}
	log := r.log.WithField("stage", stage).WithError(cause)
	log.Error("job failed")
	o.metrics.jobFinished(string(types.StatusFailed))
	o.emit(r, stage, EventJobFailed, cause.Error())

	job, err := o.ledger.Update(context.WithoutCancel(ctx), r.job.TenantID, r.job.JobID, types.JobPatch{
		Status: types.StatusPtr(types.StatusFailed),
		Error:  &types.JobError{Stage: stage, Message: cause.Error()},
	})
	if err != nil {
		log.WithField("ledger_error", err.Error()).Error("failed to record job failure")
		return nil, errors.Join(failure, err)
	}
	return job, failure
}

// checkpoint writes stage progress before the pipeline moves on
func (o *Orchestrator) checkpoint(ctx context.Context, r *run, patch types.JobPatch) error {
	job, err := o.ledger.Update(ctx, r.job.TenantID, r.job.JobID, patch)
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	r.job = job
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, key string) ([]byte, error) {
	fetchCtx, cancel := withTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	return o.reader.Get(fetchCtx, key)
}

func (o *Orchestrator) fetchAndParse(ctx context.Context, key string) (*types.ParsedDocument, error) {
	data, err := o.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return o.parser.Parse(ctx, key, data)
}

func (o *Orchestrator) emit(r *run, stage types.Stage, event, message string) {
	if o.progress == nil {
		return
	}
	o.progress(ProgressEvent{
		TenantID: r.job.TenantID,
		JobID:    r.job.JobID,
		Stage:    stage,
		Event:    event,
		Message:  message,
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sameArtifacts(a, b *types.JobResult) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DocxRef == b.DocxRef && a.PdfRef == b.PdfRef
}

func formatSummary(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}
