package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/patch"
	"onboarding-forms/internal/session"
	"onboarding-forms/internal/store"
	"onboarding-forms/internal/templates"
)

// Error codes returned in the error envelope.
const (
	CodeBadRequest  = "bad_request"
	CodeRejected    = "patch_rejected"
	CodeInvalid     = "invalid_configuration"
	CodeNotFound    = "not_found"
	CodeConflict    = "version_conflict"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// requestError is a client mistake found by a handler before the service
// was called.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(err error) error {
	return &requestError{msg: err.Error()}
}

// classify maps an error to its status, code and details. Rejections that
// carry structural issues are 422 like a failed validation.
func classify(err error) (int, errorBody) {
	body := errorBody{Message: err.Error()}

	var (
		reqErr   *requestError
		rejected *patch.RejectedError
		invalid  *formschema.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		body.Code = CodeBadRequest
		return http.StatusBadRequest, body
	case errors.As(err, &invalid):
		body.Code, body.Details = CodeInvalid, invalid.Issues
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &rejected):
		body.Code = CodeRejected
		if len(rejected.Issues) > 0 {
			body.Details = rejected.Issues
			return http.StatusUnprocessableEntity, body
		}
		return http.StatusBadRequest, body
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, templates.ErrUnknownTemplate):
		body.Code = CodeNotFound
		return http.StatusNotFound, body
	case errors.Is(err, ledger.ErrVersionConflict):
		body.Code = CodeConflict
		return http.StatusConflict, body
	}
	body.Code, body.Message = CodeInternal, "internal error"
	return http.StatusInternalServerError, body
}

// abortWithError writes the error envelope. Internal errors are logged with
// their cause and reported without it.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
