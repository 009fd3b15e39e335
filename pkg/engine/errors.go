// Package engine implements the operation execution engine: it maps a
// recognized Intent onto a validated Operation, routes it to the native or
// fallback executor, streams progress, and classifies every failure into a
// fixed error taxonomy. Callers only ever receive an ExecutionResult; the
// engine never lets a raw failure cross its boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrorKind classifies an operation failure. The set is fixed; every
// failure raised anywhere in the engine maps to exactly one kind.
type ErrorKind string

const (
	// ErrKindInvalidRequest indicates the Intent could not be validated
	// into an Operation (missing or contradictory fields).
	ErrKindInvalidRequest ErrorKind = "invalid_request"

	// ErrKindBusy indicates another system-mutating operation is already
	// in flight. The underlying configuration mechanism is not safely
	// concurrent, so a second caller is rejected rather than queued.
	ErrKindBusy ErrorKind = "busy"

	// ErrKindPermissionRequired indicates the operation needs elevated
	// privilege the current process lacks.
	ErrKindPermissionRequired ErrorKind = "permission_required"

	// ErrKindNotFound indicates a package, attribute, or generation the
	// operation referenced does not exist.
	ErrKindNotFound ErrorKind = "not_found"

	// ErrKindBuildFailure indicates the configuration failed to
	// evaluate or build.
	ErrKindBuildFailure ErrorKind = "build_failure"

	// ErrKindTimeout indicates a fallback invocation exceeded its
	// deadline. The detail carries the partial output captured so far.
	ErrKindTimeout ErrorKind = "timeout"

	// ErrKindNativeUnavailable indicates the operation kind is not
	// supported without the native API and no fallback exists for it.
	ErrKindNativeUnavailable ErrorKind = "native_unavailable"

	// ErrKindUnknown is the classification of last resort.
	ErrKindUnknown ErrorKind = "unknown"
)

// OpError is a classified operation failure with a user-facing message and
// an optional remediation hint.
type OpError struct {
	// Kind is the taxonomy classification.
	Kind ErrorKind `json:"kind"`

	// Message is the non-technical, user-facing summary.
	Message string `json:"message"`

	// Detail carries technical context: raw tool output, the offending
	// field, partial output on timeout.
	Detail string `json:"detail,omitempty"`

	// Remediation is a suggested next step, when one is known.
	Remediation string `json:"remediation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two OpErrors match
// on Kind alone.
func (e *OpError) Is(target error) bool {
	t, ok := target.(*OpError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches technical detail to the error.
func (e *OpError) WithDetail(detail string) *OpError {
	e.Detail = detail
	return e
}

// WithRemediation attaches a remediation hint to the error.
func (e *OpError) WithRemediation(remediation string) *OpError {
	e.Remediation = remediation
	return e
}

// NewInvalidRequestError creates an invalid-request error.
func NewInvalidRequestError(message string) *OpError {
	return &OpError{Kind: ErrKindInvalidRequest, Message: message}
}

// NewBusyError creates a busy error.
func NewBusyError() *OpError {
	return &OpError{
		Kind:        ErrKindBusy,
		Message:     "another system operation is already running",
		Remediation: "wait for the current operation to finish, then try again",
	}
}

// NewPermissionError creates a permission-required error.
func NewPermissionError(err error) *OpError {
	return &OpError{
		Kind:        ErrKindPermissionRequired,
		Message:     "this operation requires administrator privileges",
		Remediation: "retry with elevated permission (e.g. via sudo)",
		Err:         err,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string, err error) *OpError {
	return &OpError{Kind: ErrKindNotFound, Message: message, Err: err}
}

// NewBuildFailureError creates a build-failure error.
func NewBuildFailureError(message string, err error) *OpError {
	return &OpError{Kind: ErrKindBuildFailure, Message: message, Err: err}
}

// NewTimeoutError creates a timeout error. The partial output captured
// before the deadline goes into the detail so it is never lost.
func NewTimeoutError(partialOutput string, err error) *OpError {
	return &OpError{
		Kind:        ErrKindTimeout,
		Message:     "the operation did not finish in time",
		Detail:      partialOutput,
		Remediation: "check the partial output above, then retry",
		Err:         err,
	}
}

// NewNativeUnavailableError creates a native-unavailable error.
func NewNativeUnavailableError(kind OperationKind) *OpError {
	return &OpError{
		Kind:    ErrKindNativeUnavailable,
		Message: fmt.Sprintf("operation %q is not supported without the native system API", kind),
	}
}

// KindOf returns the classification of err, or ErrKindUnknown when err is
// not an OpError.
func KindOf(err error) ErrorKind {
	var e *OpError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// Translate maps any failure raised by an executor into exactly one
// OpError. Already-classified errors pass through unchanged; everything
// else is classified from the error chain and message text.
func Translate(err error) *OpError {
	if err == nil {
		return nil
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("", err)
	}
	if errors.Is(err, os.ErrPermission) {
		return NewPermissionError(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "must be run as root"):
		return NewPermissionError(err)

	case strings.Contains(msg, "no space left"):
		return NewBuildFailureError("the build ran out of disk space", err).
			WithDetail(err.Error()).
			WithRemediation("free disk space with 'nix-collect-garbage -d' and retry")

	case strings.Contains(msg, "unable to download"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "network is unreachable"):
		return NewBuildFailureError("a download failed while building", err).
			WithDetail(err.Error()).
			WithRemediation("check your network connection and retry")

	case strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "undefined variable"),
		strings.Contains(msg, "missing attribute"):
		return NewNotFoundError("something the configuration references does not exist", err).
			WithDetail(err.Error())

	case strings.Contains(msg, "syntax error"),
		strings.Contains(msg, "evaluation aborted"),
		strings.Contains(msg, "build failed"),
		strings.Contains(msg, "builder failed"):
		return NewBuildFailureError("the configuration failed to build", err).
			WithDetail(err.Error())
	}

	return &OpError{
		Kind:    ErrKindUnknown,
		Message: "the operation failed",
		Detail:  err.Error(),
		Err:     err,
	}
}

// ToErrorInfo converts the error into its result-facing form.
func (e *OpError) ToErrorInfo() *ErrorInfo {
	if e == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:        e.Kind,
		Message:     e.Message,
		Detail:      e.Detail,
		Remediation: e.Remediation,
	}
}
