package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// FormResult is the body returned by form actions: per-field errors on failure,
// an optional follow-up location on success
type FormResult struct {
	Success    bool              `json:"success"`
	Errors     map[string]string `json:"errors,omitempty"`
	RedirectTo string            `json:"redirectTo,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes a 201 Created response with optional data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteFormSuccess writes a successful form result
func WriteFormSuccess(w http.ResponseWriter, redirectTo string) error {
	return WriteJSON(w, http.StatusOK, FormResult{Success: true, RedirectTo: redirectTo})
}

// WriteFormMessage writes a successful form result carrying a message for the user
func WriteFormMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, FormResult{Success: true, Message: message})
}

// WriteFormErrors writes a failed form result keyed by field
func WriteFormErrors(w http.ResponseWriter, status int, errors map[string]string) error {
	return WriteJSON(w, status, FormResult{Errors: errors})
}

// SeeOther redirects with 303 so the browser follows with a GET
func SeeOther(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// errorKinds names the error field for each status the API writes
var errorKinds = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusInternalServerError: "internal_error",
	http.StatusBadGateway:          "bad_gateway",
}

// WriteError writes an error body for status. Unlisted statuses are reported as internal_error.
func WriteError(w http.ResponseWriter, status int, message string, details map[string]interface{}) error {
	kind, ok := errorKinds[status]
	if !ok {
		kind = errorKinds[http.StatusInternalServerError]
	}
	return WriteJSON(w, status, ErrorResponse{Error: kind, Message: message, Details: details})
}

func writeErrorOr(w http.ResponseWriter, status int, message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return WriteError(w, status, message, nil)
}

// WriteBadRequest writes a 400 with optional per-field details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusBadRequest, message, details)
}

// WriteUnauthorized writes a 401
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return writeErrorOr(w, http.StatusUnauthorized, message, "Authentication required")
}

// WriteForbidden writes a 403
func WriteForbidden(w http.ResponseWriter, message string) error {
	return writeErrorOr(w, http.StatusForbidden, message, "Access forbidden")
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, message string) error {
	return writeErrorOr(w, http.StatusNotFound, message, "Resource not found")
}

// WriteConflict writes a 409
func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusConflict, message, details)
}

// WriteInternalServerError writes a 500
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return writeErrorOr(w, http.StatusInternalServerError, message, "Internal server error")
}

// WriteBadGateway writes a 502 for failures of the auth or storage API
func WriteBadGateway(w http.ResponseWriter, message string) error {
	return writeErrorOr(w, http.StatusBadGateway, message, "Upstream service unavailable")
}
