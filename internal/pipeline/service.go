package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
)

// JobDescriptionCategory holds job descriptions submitted as inline text
const JobDescriptionCategory = "job-descriptions"

// Enqueuer hands an accepted job to whatever executes it
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID, jobID string) error
}

// Service implements job submission, status, restart and download
type Service struct {
	ledger ledger.Ledger
	blobs  storage.BlobStore
	signer *storage.URLSigner
	queue  Enqueuer
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a job service
func NewService(l ledger.Ledger, blobs storage.BlobStore, signer *storage.URLSigner, queue Enqueuer, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		ledger: l,
		blobs:  blobs,
		signer: signer,
		queue:  queue,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates a submission, records a QUEUED job and enqueues it.
// Acceptance is asynchronous: the response reports RUNNING as soon as the
// job is queued.
func (s *Service) Submit(ctx context.Context, req *types.SubmitRequest) (*types.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	refs := []struct {
		field string
		kind  string
		key   string
	}{
		{"resumeRef", "resume", req.ResumeRef},
		{"jobDescriptionRef", "job description", req.JobDescriptionRef},
		{"templateRef", "template", req.TemplateRef},
	}
	for _, ref := range refs {
		if ref.key == "" {
			continue
		}
		if err := s.checkRef(ctx, req.TenantID, ref.field, ref.kind, ref.key); err != nil {
			return nil, err
		}
	}

	jdRef := req.JobDescriptionRef
	if req.JobDescriptionText != "" {
		// a fresh key per submission, so a rejected duplicate never touches another job's input
		jdRef = storage.UploadKey(req.TenantID, JobDescriptionCategory, "job-description.txt")
		if err := s.blobs.Put(ctx, jdRef, []byte(req.JobDescriptionText), storage.ContentTypeText); err != nil {
			return nil, fmt.Errorf("failed to store job description: %w", err)
		}
	}

	now := s.now()
	job := &types.Job{
		TenantID: req.TenantID,
		JobID:    jobID,
		Status:   types.StatusQueued,
		Inputs: types.JobInputs{
			ResumeRef:         req.ResumeRef,
			JobDescriptionRef: jdRef,
			TemplateRef:       req.TemplateRef,
			Options:           req.Options,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Put(ctx, job, false); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"tenant_id": job.TenantID, "job_id": job.JobID})
	if err := s.queue.Enqueue(ctx, job.TenantID, job.JobID); err != nil {
		s.markUnqueued(ctx, job, err)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	log.Info("job accepted")

	return &types.SubmitResponse{JobID: jobID, Status: types.StatusRunning}, nil
}

// Status returns the externally visible view of a job
func (s *Service) Status(ctx context.Context, tenantID, jobID string) (*types.StatusResponse, error) {
	job, err := s.ledger.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return types.NewStatusResponse(job), nil
}

// Restart moves a FAILED job back to QUEUED and enqueues it again. Only an
// operator call reaches this; the pipeline never retries on its own.
func (s *Service) Restart(ctx context.Context, tenantID, jobID string) (*types.SubmitResponse, error) {
	job, err := s.ledger.Update(ctx, tenantID, jobID, types.JobPatch{
		Status:       types.StatusPtr(types.StatusQueued),
		LastStage:    types.StagePtr(""),
		ClearOutcome: true,
		ExpectStatus: types.StatusPtr(types.StatusFailed),
	})
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, tenantID, jobID); err != nil {
		s.markUnqueued(ctx, job, err)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": tenantID, "job_id": jobID}).Info("job restarted")
	return &types.SubmitResponse{JobID: jobID, Status: types.StatusRunning}, nil
}

// Download issues a signed URL for one artifact of a COMPLETED job. Jobs
// whose report is REVIEW are downloadable like any other completed job.
func (s *Service) Download(ctx context.Context, req *types.DownloadRequest) (*types.DownloadResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Expiry < 0 || req.Expiry > storage.MaxDownloadExpiry {
		return nil, &types.ValidationInputError{
			Field:   "expiresIn",
			Message: fmt.Sprintf("must be between 0 and %s", storage.MaxDownloadExpiry),
		}
	}

	job, err := s.ledger.Get(ctx, req.TenantID, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.StatusCompleted || job.Result == nil {
		return nil, &types.StatusConflictError{
			TenantID: job.TenantID,
			JobID:    job.JobID,
			Expected: types.StatusCompleted,
			Actual:   job.Status,
			Reason:   "job has no artifacts",
		}
	}

	key := job.Result.DocxRef
	if req.Format == "pdf" {
		key = job.Result.PdfRef
	}
	if key == "" {
		return nil, &types.NotFoundError{Kind: req.Format + " artifact", ID: job.JobID}
	}

	signed, err := s.signer.Sign(key, req.Expiry)
	if err != nil {
		return nil, err
	}
	return &types.DownloadResponse{URL: signed.URL, Key: key, ExpiresAt: signed.ExpiresAt}, nil
}

// Upload stores a document under {tenantId}/{category}/{uuid}-{fileName}
func (s *Service) Upload(ctx context.Context, req *types.UploadRequest) (*types.UploadResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := storage.UploadKey(req.TenantID, req.Category, req.FileName)
	if err := s.blobs.Put(ctx, key, req.Data, storage.ContentTypeFor(path.Ext(req.FileName))); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": req.TenantID, "key": key, "bytes": len(req.Data)}).Info("document uploaded")
	return &types.UploadResponse{Key: key}, nil
}

// ReadSigned returns the object a download token grants, with its content type
func (s *Service) ReadSigned(ctx context.Context, token string) ([]byte, string, error) {
	key, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", err
	}
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return data, storage.ContentTypeFor(path.Ext(key)), nil
}

// checkRef requires key to be a well-formed key owned by tenantID that exists
func (s *Service) checkRef(ctx context.Context, tenantID, field, kind, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return &types.ValidationInputError{Field: field, Message: err.Error()}
	}
	if storage.TenantOf(key) != tenantID {
		return &types.ValidationInputError{Field: field, Message: "must belong to tenant " + tenantID}
	}
	ok, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", field, err)
	}
	if !ok {
		return &types.NotFoundError{Kind: kind, ID: key}
	}
	return nil
}

// markUnqueued fails a job that was recorded but could not be enqueued so
// it never sits in QUEUED with nothing to run it
func (s *Service) markUnqueued(ctx context.Context, job *types.Job, cause error) {
	_, err := s.ledger.Update(context.WithoutCancel(ctx), job.TenantID, job.JobID, types.JobPatch{
		Status: types.StatusPtr(types.StatusFailed),
		Error:  &types.JobError{Stage: types.StageParse, Message: "failed to enqueue job: " + cause.Error()},
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"tenant_id": job.TenantID, "job_id": job.JobID}).
			WithError(err).Error("failed to record enqueue failure")
	}
}
