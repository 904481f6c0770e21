package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const contentTypeJSON = "application/json"

// fallbackBody is sent when a payload cannot be marshalled.
var fallbackBody = []byte(`{"message":"Internal server error","errors":[]}` + "\n")

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteError sends an ErrorResponse. A nil detail list is rendered as [].
func WriteError(w http.ResponseWriter, statusCode int, message string, details []string, log *slog.Logger) {
	if details == nil {
		details = []string{}
	}
	WriteJSON(w, statusCode, ErrorResponse{Message: message, Errors: details}, log)
}

// WriteJSON marshals payload before touching the writer, so a payload that
// cannot be encoded turns into a 500 instead of a truncated body.
func WriteJSON(w http.ResponseWriter, statusCode int, payload any, log *slog.Logger) {
	body, err := json.Marshal(payload)
	if err != nil {
		logError(log, "response payload not encodable", err, statusCode)
		statusCode, body = http.StatusInternalServerError, fallbackBody
	} else {
		body = append(body, '\n')
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		logError(log, "response write failed", err, statusCode)
	}
}

func logError(log *slog.Logger, msg string, err error, status int) {
	if log != nil {
		log.Error(msg, "error", err, "status", status)
	}
}
