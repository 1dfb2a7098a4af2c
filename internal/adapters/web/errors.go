package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
	"tablet-tracker/internal/logging"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp.RequestID = requestIDFromContext(r.Context())
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated writes a JSON response with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAppError maps an application error to its HTTP status and error code.
// Anything unrecognised is logged and reported as a 500 without its message.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	var cfgErr *core.ConfigError
	switch {
	case errors.As(err, &verr):
		writeErrorResponse(w, r, errorResponse{Error: verr.Error(), Code: "VALIDATION_ERROR", Fields: verr.Fields}, http.StatusBadRequest)
	case errors.Is(err, app.ErrForbidden):
		writeError(w, r, err.Error(), "FORBIDDEN", http.StatusForbidden)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrClosed):
		writeError(w, r, err.Error(), "CLOSED", http.StatusConflict)
	case errors.Is(err, core.ErrReceiptFlavorMismatch):
		writeError(w, r, err.Error(), "RECEIPT_FLAVOR_MISMATCH", http.StatusConflict)
	case errors.Is(err, core.ErrInvalidState):
		writeError(w, r, err.Error(), "INVALID_STATE", http.StatusConflict)
	case errors.Is(err, app.ErrJobRunning):
		writeError(w, r, err.Error(), "JOB_RUNNING", http.StatusConflict)
	case errors.As(err, &cfgErr):
		writeError(w, r, err.Error(), "PRODUCT_CONFIG", http.StatusUnprocessableEntity)
	default:
		logging.LogError(h.log, "web", "writeAppError", r.Method+" "+r.URL.Path, requestIDFromContext(r.Context()), err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
