package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"render-engine/internal/logging"
	"render-engine/internal/renderr"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, ErrorResponse{Error: message})
}

// writeEngineError maps an engine error onto an HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var re *renderr.Error
	if errors.As(err, &re) {
		switch re.Kind {
		case renderr.KindValidation, renderr.KindTemplateNotFound:
			status = http.StatusBadRequest
		case renderr.KindMediaFile:
			status = http.StatusUnprocessableEntity
		case renderr.KindDependencyMissing:
			status = http.StatusServiceUnavailable
		case renderr.KindCancelled:
			status = http.StatusConflict
		}
	}
	writeJSONStatus(w, status, ErrorResponse{Error: err.Error(), Kind: renderr.KindOf(err).String()})
}
