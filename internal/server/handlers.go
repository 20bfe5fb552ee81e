package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

// handleSubmit accepts a tailoring job and queues it
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	resp, err := s.jobs.Submit(r.Context(), &req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/jobs/"+resp.JobID+"?tenantId="+req.TenantID)
	s.jsonResponse(w, http.StatusAccepted, resp)
}

// handleStatus reports a job's lifecycle state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	resp, err := s.jobs.Status(r.Context(), tenantID, r.PathValue("jobId"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleRestart requeues a FAILED job
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	resp, err := s.jobs.Restart(r.Context(), tenantID, r.PathValue("jobId"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, resp)
}

// handleDownload issues a signed URL for a completed job's artifact.
// expiresIn accepts a Go duration ("15m") or a number of seconds.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	format := q.Get("format")
	if format == "" {
		format = "docx"
	}
	expiry, err := parseExpiry(q.Get("expiresIn"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp, err := s.jobs.Download(r.Context(), &types.DownloadRequest{
		TenantID: tenantID,
		JobID:    r.PathValue("jobId"),
		Format:   format,
		Expiry:   expiry,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleFile serves the object a signed download token grants
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.jobs.ReadSigned(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Warn("failed to write file response")
	}
}

// handleUpload stores a multipart document (fields tenantId, category, file)
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.handleError(w, r, bodyError(err, "file"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, header, err := r.FormFile("file")
	if err != nil {
		s.handleError(w, r, &types.ValidationInputError{Field: "file", Message: "multipart file field is required"})
		return
	}
	defer file.Close() //nolint:errcheck // read-only

	data, err := io.ReadAll(file)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	resp, err := s.jobs.Upload(r.Context(), &types.UploadRequest{
		TenantID: r.FormValue("tenantId"),
		Category: r.FormValue("category"),
		FileName: header.Filename,
		Data:     data,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, resp)
}

// requireTenant reads the tenantId query parameter, writing 400 when absent
func (s *Server) requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		s.handleError(w, r, &types.ValidationInputError{Field: "tenantId", Message: "query parameter is required"})
		return "", false
	}
	return tenantID, true
}

// decodeJSON reads a size-limited JSON body into v
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err, "body")
	}
	return nil
}

// bodyError keeps size-limit errors intact and reports everything else as bad input
func bodyError(err error, field string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &types.ValidationInputError{Field: field, Message: err.Error()}
}

func parseExpiry(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &types.ValidationInputError{Field: "expiresIn", Message: "must be a duration such as 15m or a number of seconds"}
	}
	return d, nil
}
