package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
)

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	AppCode    int64  `json:"code,omitempty"`  // application-specific error code
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Conflict.",
		ErrorText:      err.Error(),
	}
}

func ErrUnavailable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Resource busy, retry.",
		ErrorText:      err.Error(),
	}
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
var ErrInternalServer = &ErrResponse{
	Err:            nil,
	HTTPStatusCode: http.StatusInternalServerError,
	StatusText:     "Internal server error.",
	ErrorText:      "An internal server error has occurred.",
}

// ErrFromService picks the response for an error returned by the core services. Anything it does not
// recognize is logged and hidden behind a 500.
func ErrFromService(err error) render.Renderer {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusNotFound,
			StatusText:     ErrNotFound.StatusText,
			ErrorText:      err.Error(),
		}
	case errors.Is(err, core.ErrAlreadyExists),
		errors.Is(err, core.ErrInsufficientStock),
		errors.Is(err, core.ErrInvalidState):
		return ErrConflict(err)
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrValidation):
		return ErrInvalidRequest(err)
	case errors.Is(err, core.ErrContention):
		return ErrUnavailable(err)
	default:
		log.Error().Stack().Err(err).Msg("unexpected service error")
		return ErrInternalServer
	}
}
