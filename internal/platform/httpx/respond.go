// Package httpx provides the JSON response envelope and error mapping
// shared by all API handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape:
// { success, data?, error?, message? }.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PageInfo is the pagination metadata attached to list responses.
type PageInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// pagedEnvelope extends the envelope for list endpoints.
type pagedEnvelope struct {
	Success    bool     `json:"success"`
	Data       any      `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

// JSON writes an arbitrary payload with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Page writes a successful paginated envelope.
func Page(w http.ResponseWriter, data any, page PageInfo) {
	JSON(w, http.StatusOK, pagedEnvelope{Success: true, Data: data, Pagination: page})
}

// Fail writes a failure envelope with a machine-readable code and a
// human message.
func Fail(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Success: false, Error: code, Message: message})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
