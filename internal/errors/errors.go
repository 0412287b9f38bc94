// Package errors provides structured error types for promptchain.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error codes for promptchain operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value

	// Template errors
	CodeTemplateValidation = "TMPL_001" // Unresolved or invalid placeholders

	// Step executor errors
	CodeInsertionFailed     = "EXEC_001" // No editable surface
	CodeSendFailed          = "EXEC_002" // Send retries exhausted or hard failure
	CodeResponseTimeout     = "EXEC_003" // No busy -> idle transition in time
	CodeResponseUnavailable = "EXEC_004" // Idle, but no response text to capture
	CodeCancelled           = "EXEC_005" // Run cancellation observed

	// Run coordinator errors
	CodeRunAlreadyActive = "RUN_001" // A run is already in progress

	// Prompt storage errors
	CodePromptNotFound      = "PROMPT_001"
	CodePromptInvalid       = "PROMPT_002"
	CodePromptAlreadyExists = "PROMPT_003"

	// Bridge errors
	CodeBridgeNotConnected = "BRIDGE_001" // No page connected to the bridge
	CodeBridgeTimeout      = "BRIDGE_002" // Page did not answer a request

	// IO errors
	CodeIOFileNotFound = "IO_001"
	CodeIOReadError    = "IO_004"
	CodeIOWriteError   = "IO_005"
)

// ChainError is the structured error type for promptchain operations.
type ChainError struct {
	Code    string         `json:"code"`              // Error code (e.g., "EXEC_002")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (step, reason, etc.)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *ChainError) WithDetail(key string, value any) *ChainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *ChainError) WithCause(err error) *ChainError {
	e.Cause = err
	return e
}

// MarshalJSON implements json.Marshaler with cause error message.
func (e *ChainError) MarshalJSON() ([]byte, error) {
	type alias ChainError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new ChainError.
func New(code, message string) *ChainError {
	return &ChainError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new ChainError with formatted message.
func Newf(code, format string, args ...any) *ChainError {
	return &ChainError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a ChainError.
func Wrap(code, message string, err error) *ChainError {
	return &ChainError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for missing config field.
func ConfigMissingField(field string) *ChainError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *ChainError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// --- Template Errors ---

// TemplateValidation creates the error returned by strict rendering.
// The message lists missing variables and invalid references, joined by "; ".
func TemplateValidation(missing, invalid []string) *ChainError {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid references: "+strings.Join(invalid, ", "))
	}
	return New(CodeTemplateValidation, strings.Join(parts, "; ")).
		WithDetail("missing_variables", missing).
		WithDetail("invalid_references", invalid)
}

// --- Step Executor Errors ---

// InsertionFailed creates an error for a host editor without an editable surface.
func InsertionFailed(cause error) *ChainError {
	err := New(CodeInsertionFailed, "no editable input surface found")
	if cause != nil {
		err.Cause = cause
	}
	return err
}

// SendFailed creates an error for a send that never succeeded.
func SendFailed(reason string, attempts int) *ChainError {
	return Newf(CodeSendFailed, "failed to send prompt after %d attempt(s): %s", attempts, reason).
		WithDetail("reason", reason).
		WithDetail("attempts", attempts)
}

// ResponseTimeout creates an error for a response that never completed.
func ResponseTimeout(timeout fmt.Stringer) *ChainError {
	return Newf(CodeResponseTimeout, "response did not complete within %s", timeout).
		WithDetail("timeout", timeout.String())
}

// ResponseUnavailable creates an error for a completed response with no captured text.
func ResponseUnavailable(cause error) *ChainError {
	err := New(CodeResponseUnavailable, "response completed but no response text was available")
	if cause != nil {
		err.Cause = cause
	}
	return err
}

// Cancelled creates the cancellation-kind error. The cause, when present,
// carries the abort reason.
func Cancelled(cause error) *ChainError {
	err := New(CodeCancelled, "execution cancelled")
	if cause != nil {
		err.Cause = cause
	}
	return err
}

// --- Run Errors ---

// RunAlreadyActive creates an error for a start while another run is active.
func RunAlreadyActive(runID string) *ChainError {
	return Newf(CodeRunAlreadyActive, "run %s is already in progress", runID).
		WithDetail("run_id", runID)
}

// --- Prompt Errors ---

// PromptNotFound creates an error for a missing chain prompt.
func PromptNotFound(id string) *ChainError {
	return Newf(CodePromptNotFound, "chain prompt not found: %s", id).
		WithDetail("prompt_id", id)
}

// PromptInvalid creates an error for a malformed chain prompt.
func PromptInvalid(id, reason string) *ChainError {
	return Newf(CodePromptInvalid, "invalid chain prompt %s: %s", id, reason).
		WithDetail("prompt_id", id).
		WithDetail("reason", reason)
}

// PromptAlreadyExists creates an error for a duplicate chain prompt ID.
func PromptAlreadyExists(id string) *ChainError {
	return Newf(CodePromptAlreadyExists, "chain prompt already exists: %s", id).
		WithDetail("prompt_id", id)
}

// --- Bridge Errors ---

// BridgeNotConnected creates an error for a bridge with no attached page.
func BridgeNotConnected() *ChainError {
	return New(CodeBridgeNotConnected, "no chat page is connected to the bridge")
}

// BridgeTimeout creates an error for a bridge request the page never answered.
func BridgeTimeout(op string) *ChainError {
	return Newf(CodeBridgeTimeout, "page did not answer %s request", op).
		WithDetail("op", op)
}

// --- IO Errors ---

// IOFileNotFound creates an error for missing file.
func IOFileNotFound(path string) *ChainError {
	return Newf(CodeIOFileNotFound, "file not found: %s", path).
		WithDetail("path", path)
}

// IOReadError creates an error for read failures.
func IOReadError(path string, err error) *ChainError {
	return Wrap(CodeIOReadError, "failed to read file", err).
		WithDetail("path", path)
}

// IOWriteError creates an error for write failures.
func IOWriteError(path string, err error) *ChainError {
	return Wrap(CodeIOWriteError, "failed to write file", err).
		WithDetail("path", path)
}

// HasCode checks if an error is a ChainError with the given code.
// It handles wrapped errors by unwrapping to find a ChainError.
func HasCode(err error, code string) bool {
	var cerr *ChainError
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// Code returns the error code if err is a ChainError, empty string otherwise.
func Code(err error) string {
	var cerr *ChainError
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

// IsCancellation reports whether err is the cancellation kind.
func IsCancellation(err error) bool {
	return HasCode(err, CodeCancelled)
}
