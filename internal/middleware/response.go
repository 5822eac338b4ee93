package middleware

import (
	"encoding/json"
	"net/http"

	"stripe-webhook-router/internal/common/errors"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and writes it as JSON. Internal
// error details stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	body := ErrorBody{Error: http.StatusText(status)}
	if appErr, ok := errors.As(err); ok {
		body.Type = string(appErr.Type)
		body.Code = appErr.Code
		if status < http.StatusInternalServerError {
			body.Error = appErr.Message
		}
	}
	WriteJSON(w, status, body)
}
