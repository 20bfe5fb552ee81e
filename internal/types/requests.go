package types

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// keysegment accepts a value usable as one segment of a blob key
	_ = v.RegisterValidation("keysegment", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
	})
	return v
}

// SubmitRequest is a job submission. Exactly one of JobDescriptionRef and
// JobDescriptionText must be set.
type SubmitRequest struct {
	TenantID           string     `json:"tenantId" validate:"required,max=128,keysegment"`
	JobID              string     `json:"jobId,omitempty" validate:"omitempty,max=128,keysegment"`
	ResumeRef          string     `json:"resumeRef" validate:"required"`
	JobDescriptionRef  string     `json:"jobDescriptionRef,omitempty" validate:"required_without=JobDescriptionText,excluded_with=JobDescriptionText"`
	JobDescriptionText string     `json:"jobDescriptionText,omitempty" validate:"required_without=JobDescriptionRef,max=200000"`
	TemplateRef        string     `json:"templateRef,omitempty"`
	Options            JobOptions `json:"options"`
}

// SubmitResponse acknowledges an accepted job
type SubmitResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// StatusResponse is the externally visible view of a job
type StatusResponse struct {
	TenantID         string            `json:"tenantId"`
	JobID            string            `json:"jobId"`
	Status           JobStatus         `json:"status"`
	LastStage        Stage             `json:"lastStage,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	ValidationReport *ValidationReport `json:"validationReport,omitempty"`
	DocxRef          string            `json:"docxRef,omitempty"`
	PdfRef           string            `json:"pdfRef,omitempty"`
	Error            *JobError         `json:"error,omitempty"`
}

// NewStatusResponse flattens a job into its status view
func NewStatusResponse(job *Job) *StatusResponse {
	resp := &StatusResponse{
		TenantID:    job.TenantID,
		JobID:       job.JobID,
		Status:      job.Status,
		LastStage:   job.LastStage,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	if job.Result != nil {
		resp.ValidationReport = job.Result.ValidationReport
		resp.DocxRef = job.Result.DocxRef
		resp.PdfRef = job.Result.PdfRef
	}
	return resp
}

// UploadRequest stores a document for later use as a job input
type UploadRequest struct {
	TenantID string `json:"tenantId" validate:"required,max=128,keysegment"`
	Category string `json:"category,omitempty" validate:"omitempty,max=64,keysegment"`
	FileName string `json:"fileName" validate:"required,max=255"`
	Data     []byte `json:"-" validate:"required,min=1"`
}

// UploadResponse returns the key an upload was stored under
type UploadResponse struct {
	Key string `json:"key"`
}

// DownloadRequest asks for a signed URL to a completed job's artifact
type DownloadRequest struct {
	TenantID string        `json:"tenantId" validate:"required,keysegment"`
	JobID    string        `json:"jobId" validate:"required,keysegment"`
	Format   string        `json:"format" validate:"required,oneof=docx pdf"`
	Expiry   time.Duration `json:"expiresIn"`
}

// DownloadResponse carries a time-bounded retrieval URL
type DownloadResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Validate checks the submission's fields
func (r *SubmitRequest) Validate() error {
	return validateStruct(r)
}

// Validate checks the upload's fields
func (r *UploadRequest) Validate() error {
	return validateStruct(r)
}

// Validate checks the download request's fields
func (r *DownloadRequest) Validate() error {
	return validateStruct(r)
}

// validateStruct reports the first failing field as a ValidationInputError
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &ValidationInputError{Field: fe.Field(), Message: msg}
	}
	return &ValidationInputError{Message: err.Error()}
}
