package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", &types.ValidationInputError{Field: "tenantId", Message: "failed required"}, http.StatusBadRequest},
		{"not found", &types.NotFoundError{Kind: "job", ID: "j1"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", &types.NotFoundError{Kind: "resume", ID: "k"}), http.StatusNotFound},
		{"already exists", &types.AlreadyExistsError{TenantID: "acme", JobID: "j1"}, http.StatusConflict},
		{"status conflict", &types.StatusConflictError{Expected: types.StatusFailed, Actual: types.StatusRunning}, http.StatusConflict},
		{"bad token", fmt.Errorf("%w: expired", storage.ErrInvalidToken), http.StatusForbidden},
		{"queue full", fmt.Errorf("failed to enqueue job: %w", pipeline.ErrQueueFull), http.StatusServiceUnavailable},
		{"dispatcher stopped", pipeline.ErrDispatcherStopped, http.StatusServiceUnavailable},
		{"provider", &types.ProviderUnavailableError{Provider: "gemini", Cause: errors.New("401")}, http.StatusBadGateway},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestClientMessage(t *testing.T) {
	err := errors.New("pq: connection refused at 10.0.0.5")
	assert.Equal(t, "Internal Server Error", clientMessage(http.StatusInternalServerError, err))
	assert.Equal(t, err.Error(), clientMessage(http.StatusNotFound, err))
}
