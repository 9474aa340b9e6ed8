package http

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-views/pkg/orchestrator"
	"github.com/goliatone/go-views/pkg/render"
)

// HTTPStatusFromError maps a render error to the response status code.
// Malformed requests are 400, unknown views 404, and everything else,
// faults included, 500.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, render.ErrInvalidArgument) && !render.IsFault(err):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrViewNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a plain-text error response for err. Internal details
// are never written to the client.
func WriteError(w http.ResponseWriter, err error) int {
	status := HTTPStatusFromError(err)
	http.Error(w, http.StatusText(status), status)
	return status
}
