package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the controller.
type ErrorKind string

const (
	// KindTransport covers network failures and timeouts. Callers may retry; the core never does.
	KindTransport ErrorKind = "transport"
	// KindValidation marks a bad configuration field. Nothing reaches the backend.
	KindValidation ErrorKind = "validation"
	// KindConflict marks a request rejected because an experiment or a strategy
	// reconfiguration is already in flight.
	KindConflict ErrorKind = "conflict"
	// KindBackend marks a well-formed request the backend rejected semantically.
	KindBackend ErrorKind = "backend"
)

// ErrExperimentRunning is wrapped by every conflict raised for an in-flight experiment.
var ErrExperimentRunning = errors.New("experiment already running")

// ErrConfigureInProgress is wrapped by conflicts raised while the backend strategy is being switched.
var ErrConfigureInProgress = errors.New("strategy reconfiguration in progress")

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op    string
	Msg   string
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may resubmit the same request.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransport
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// NewTransportError wraps a network or timeout failure.
func NewTransportError(op string, err error) error {
	return &AppError{Op: op, Msg: "transport failure", Kind: KindTransport, Err: err}
}

// NewBackendError carries the backend's rejection message verbatim.
func NewBackendError(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Kind: KindBackend}
}

// NewValidationError names the offending configuration field.
func NewValidationError(field, msg string) error {
	return &AppError{Op: "validate", Msg: fmt.Sprintf("%s %s", field, msg), Kind: KindValidation, Field: field}
}

// NewConflictError reports that an experiment is already pending or running.
func NewConflictError(op string) error {
	return &AppError{Op: op, Msg: "rejected", Kind: KindConflict, Err: ErrExperimentRunning}
}

// NewConfigureConflictError reports that a strategy reconfiguration is still in progress.
func NewConfigureConflictError(op string) error {
	return &AppError{Op: op, Msg: "rejected", Kind: KindConflict, Err: ErrConfigureInProgress}
}

// KindOf returns the taxonomy kind of err, or "" when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transport failure.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retryable()
}
