// Package handlers adapts HTTP requests to the intake services.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/validation"
	"intake-service/internal/http/response"
	"intake-service/internal/intake"
)

type Handler struct {
	logger logger.Logger
}

func newHandler(log logger.Logger, component string) Handler {
	return Handler{logger: log.WithFields(map[string]interface{}{"component": component})}
}

// fail writes the error envelope, logging server-side failures with their cause.
func (h Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.As(err)
	if !errors.IsClientError(stdErr.Code) {
		h.logger.Error("request error", map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
			"error":   err,
		})
	}
	response.Error(w, stdErr)
}

// adminOnly runs ahead of body validation so non-admins always see 403.
var adminOnly = intake.RequireAdmin

// principal is always present behind Authenticate.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// decode validates the body against schema before unmarshalling into dst.
func decode(r *http.Request, schema string, dst interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.NewValidationError("Invalid request body", err.Error())
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	result, err := validation.ValidateJSON(schema, raw)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if !result.Valid {
		return errors.NewValidationError("Invalid request body", result.Summary()).
			WithMetadata("errors", result.Errors)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewValidationError("Invalid request body", err.Error())
	}
	return nil
}
