// Package http serves the ledger's JSON API. Handlers translate requests
// into service calls; all money moves through the services, never here.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"buste/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Body sets the payload to encode.
func (b *JSONResponseBuilder) Body(payload any) *JSONResponseBuilder {
	b.payload = payload
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		if err := json.NewEncoder(w).Encode(b.payload); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError maps a ledger error onto the right status code: validation
// failures are 422, missing rows 404, conflicting state transitions 409,
// anything else 500 with the detail kept out of the body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(errorBody{Error: err.Error()}).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NewJSONResponse().Status(http.StatusNotFound).Body(errorBody{Error: "not found"}).Write(w)
	case core.IsConflict(err):
		NewJSONResponse().Status(http.StatusConflict).Body(errorBody{Error: err.Error()}).Write(w)
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		NewJSONResponse().Status(http.StatusInternalServerError).Body(errorBody{Error: "internal error"}).Write(w)
	}
}

// BadRequest writes a 400 with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	NewJSONResponse().Status(http.StatusBadRequest).Body(errorBody{Error: message}).Write(w)
}
