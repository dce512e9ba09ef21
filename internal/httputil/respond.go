// Package httputil provides shared HTTP request/response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: message})
}

// TooManyRequests writes a 429 error response.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: message})
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message})
}

// InternalErrorDetails writes a 500 error response carrying failure details.
func InternalErrorDetails(w http.ResponseWriter, message, details string) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Details: details})
}

// DecodeJSON decodes a JSON request body, writing a 400 on failure. Returns
// false when the response has already been written.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
