package stages

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/ideaflow/pkg/llm"
)

// GenerationError means the generator answered but the answer was missing,
// malformed, or outside the allowed values.
type GenerationError struct {
	Stage  string
	Reason string
	// Preview is a truncated copy of the offending output, for logs.
	Preview string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s generation error: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s generation error: %s", e.Stage, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TransportError means the generator could not be reached or refused the call.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err wraps a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// classifyClientError splits generator client failures into the two stage
// error kinds. A reachable model that returned nothing usable is a
// generation failure; everything else is transport.
func classifyClientError(stage string, err error) error {
	if llm.GetErrorType(err) == llm.ErrorTypeResponse {
		return &GenerationError{Stage: stage, Reason: "unusable response", Err: err}
	}
	return &TransportError{Stage: stage, Err: err}
}
