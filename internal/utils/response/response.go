// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Error responses always look like:
//
//	{ "status": "error", "error": "field name is required" }
//
// The import endpoint is the exception: it answers with
// types.ImportResult ({ "success": ..., "message": ... }) whatever the
// outcome, because the admin UI renders its message directly.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/student-base/internal/types"
)

// Response is the standard envelope returned for error cases.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes data as JSON with the given HTTP status code.
// Header() → WriteHeader() → body, in that order.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError converts validator field errors into a single
// human-readable Response, one sentence per failing field.
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages, fmt.Sprintf("field %s is required", field))
		case "email":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be a valid email address", field))
		case "min":
			errMessages = append(errMessages, fmt.Sprintf("field %s must have at least %s characters", field, e.Param()))
		case "len", "numeric":
			errMessages = append(errMessages, fmt.Sprintf("field %s must have exactly 11 digits", field))
		case types.TagRequiredDomestic:
			errMessages = append(errMessages, "field cpf is required for domestic students")
		case types.TagRequiredForeign:
			errMessages = append(errMessages, "field email is required for foreign students")
		case types.TagForeignNoCPF:
			errMessages = append(errMessages, "foreign students must not have a cpf")
		case types.TagNonZeroCPF:
			errMessages = append(errMessages, "field cpf must not be all zeros")
		default:
			errMessages = append(errMessages, fmt.Sprintf("field %s is invalid", field))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}

// Import writes an import result with the given status code.
func Import(w http.ResponseWriter, status int, result types.ImportResult) error {
	return WriteJSON(w, status, result)
}
