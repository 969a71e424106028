// Package response writes JSON bodies and the API error envelope.
package response

import (
	"encoding/json"
	"net/http"

	"intake-service/internal/common/errors"
)

// ErrorBody is the envelope of every failed request.
type ErrorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err to its status. Internal causes never reach the client.
func Error(w http.ResponseWriter, err error) {
	stdErr := errors.As(err)
	status := errors.HTTPStatus(stdErr.Code)

	body := ErrorBody{Code: stdErr.Code, Message: stdErr.Message, Details: stdErr.Details}
	if status >= http.StatusInternalServerError {
		body.Details = ""
	}
	if stdErr.Code == errors.ErrCodeRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	JSON(w, status, body)
}
