package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle error for exit-code mapping and user-facing
// reporting.
type Kind string

const (
	KindUnknownEnvironment       Kind = "UNKNOWN_ENVIRONMENT"
	KindMisconfiguredEnvironment Kind = "MISCONFIGURED_ENVIRONMENT"
	KindConnectivity             Kind = "CONNECTIVITY_ERROR"
	KindPermission               Kind = "PERMISSION_ERROR"
	KindChecksumMismatch         Kind = "CHECKSUM_MISMATCH"
	KindSchemaConflict           Kind = "SCHEMA_CONFLICT"
	KindMigrationExecution       Kind = "MIGRATION_EXECUTION_ERROR"
	KindNoDowngradePath          Kind = "NO_DOWNGRADE_PATH"
	KindEnvironmentBusy          Kind = "ENVIRONMENT_BUSY"
	KindValidationFailed         Kind = "VALIDATION_FAILED"
	KindUnknown                  Kind = "UNKNOWN_ERROR"
)

// Error is the typed error returned by every engine. Errors are returned to
// the caller unmodified; only the orchestrator reacts to one with a
// compensating action.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Op      string                 `json:"op"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %v)", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new Error
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Common error constructors

func NewUnknownEnvironmentError(op, name string) *Error {
	return NewError(KindUnknownEnvironment, op,
		fmt.Sprintf("environment %q is not defined", name), nil).
		WithContext("environment", name)
}

func NewMisconfiguredEnvironmentError(op, message string, cause error) *Error {
	return NewError(KindMisconfiguredEnvironment, op, message, cause)
}

func NewConnectivityError(op, message string, cause error) *Error {
	return NewError(KindConnectivity, op, message, cause)
}

func NewPermissionError(op, message string, cause error) *Error {
	return NewError(KindPermission, op, message, cause)
}

func NewChecksumMismatchError(op, message string) *Error {
	return NewError(KindChecksumMismatch, op, message, nil)
}

func NewSchemaConflictError(op, message string, cause error) *Error {
	return NewError(KindSchemaConflict, op, message, cause)
}

func NewMigrationExecutionError(op, message string, cause error) *Error {
	return NewError(KindMigrationExecution, op, message, cause)
}

func NewNoDowngradePathError(op, message string) *Error {
	return NewError(KindNoDowngradePath, op, message, nil)
}

func NewEnvironmentBusyError(op, environment string) *Error {
	return NewError(KindEnvironmentBusy, op,
		fmt.Sprintf("environment %q is locked by another operation", environment), nil).
		WithContext("environment", environment)
}

func NewValidationFailedError(op, message string) *Error {
	return NewError(KindValidationFailed, op, message, nil)
}

// KindOf returns the Kind of err if it is (or wraps) a lifecycle Error,
// KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// OpOf returns the operation in which err occurred, or "" if unknown.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// MarkRolledBack records on err that an automatic rollback was performed
// after it occurred.
func MarkRolledBack(err *Error) *Error {
	return err.WithContext("rolled_back", true)
}

// RolledBack reports whether an automatic rollback was performed for err.
func RolledBack(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		v, ok := e.Context["rolled_back"].(bool)
		return ok && v
	}
	return false
}

// Process exit codes.
const (
	ExitOK          = 0
	ExitOperational = 1
	ExitValidation  = 2
	ExitRolledBack  = 3
)

// ExitCode maps an error to the process exit code: 0 for nil, 3 when a
// rollback was performed, 2 for validation-class failures, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if RolledBack(err) {
		return ExitRolledBack
	}
	switch KindOf(err) {
	case KindChecksumMismatch, KindSchemaConflict, KindValidationFailed:
		return ExitValidation
	default:
		return ExitOperational
	}
}
