package tools

import (
	"errors"
	"fmt"
)

// ErrToolNotFound matches (via errors.Is) the error returned for unregistered tool names.
var ErrToolNotFound = errors.New("tool not found")

// ErrorKind classifies a ToolError.
type ErrorKind string

const (
	// KindNotFound means the requested tool is not registered.
	KindNotFound ErrorKind = "not_found"
	// KindExecution means the tool ran and reported a failure.
	KindExecution ErrorKind = "execution"
)

// ToolError is the single failure type returned by Registry.Execute.
type ToolError struct {
	Tool    string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is reports not-found tool errors as ErrToolNotFound.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolNotFound && e.Kind == KindNotFound
}

func notFound(name string) *ToolError {
	return &ToolError{
		Tool:    name,
		Kind:    KindNotFound,
		Message: fmt.Sprintf("Tool '%s' not found", name),
	}
}

func executionError(name string, err error) *ToolError {
	return &ToolError{
		Tool:    name,
		Kind:    KindExecution,
		Message: err.Error(),
		Err:     err,
	}
}

// IsRetryable reports whether a failed execution may succeed on another attempt.
// Unknown tools never become known between retries.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrToolNotFound)
}
