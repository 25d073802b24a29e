package httpapi

import (
	"encoding/json"
	"net/http"

	"voiceforged/internal/engine"
	"voiceforged/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// errorStatus maps the engine error taxonomy to HTTP codes. The four kinds
// stay distinct; anything unknown is an internal error whose detail must
// not reach untrusted callers.
func errorStatus(err error) (status int, msg string) {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case engine.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case engine.IsModelLoad(err):
		return http.StatusServiceUnavailable, err.Error()
	case engine.IsResourceExhaustion(err):
		return http.StatusInsufficientStorage, err.Error()
	default:
		return http.StatusInternalServerError, "an unexpected error occurred"
	}
}

// writeEngineError logs and maps an engine failure onto the response.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		zlog.Error().Str("path", r.URL.Path).Err(err).Msg("unexpected engine error")
	}
	writeJSONError(w, status, msg)
}
