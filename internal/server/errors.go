package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		invalid  *types.ValidationInputError
		notFound *types.NotFoundError
		exists   *types.AlreadyExistsError
		conflict *types.StatusConflictError
		provider *types.ProviderUnavailableError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &exists), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrDispatcherStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &provider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage hides internal failure detail behind a generic message
func clientMessage(status int, err error) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return http.StatusText(status)
	}
	return err.Error()
}
