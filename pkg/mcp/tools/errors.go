package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Actionable errors are returned as successful tool results carrying this
// payload so the calling agent can see and correct them.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad parameters, unknown idea).
// System failures should still be returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// serviceErrorResult converts actionable service errors into error results.
// It returns nil for anything else, which the caller reports as a Go error.
func serviceErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return NewErrorResult("invalid_parameters", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("idea_not_found", err.Error())
	case errors.Is(err, apperrors.ErrPrecondition):
		return NewErrorResult("precondition_failed", err.Error())
	case errors.Is(err, apperrors.ErrShuttingDown):
		return NewErrorResult("shutting_down", "server is shutting down")
	}
	return nil
}
