package httpapi

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-content-cache/content"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

const msgInternal = "Internal server error"

func statusOf(kind content.ErrorKind) int {
	switch kind {
	case content.KindBadRequest:
		return http.StatusBadRequest
	case content.KindUnauthorized:
		return http.StatusUnauthorized
	case content.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and body. Errors that are not
// *content.Error never leak their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    "Request body too large",
			Error:      http.StatusText(http.StatusRequestEntityTooLarge),
		})
		return
	}

	body := errorBody{StatusCode: http.StatusInternalServerError, Message: msgInternal}
	body.Error = content.KindInternal.String()

	var cerr *content.Error
	if errors.As(err, &cerr) {
		body.StatusCode = statusOf(cerr.Kind)
		body.Message = cerr.Message
		body.Error = cerr.Kind.String()
	}

	if body.StatusCode >= http.StatusInternalServerError {
		loggerFrom(r.Context(), s.logger).ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, body.StatusCode, body)
}
