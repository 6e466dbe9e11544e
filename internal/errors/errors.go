// Package errors provides standardized error codes for wakehold.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (duration, process, power, ...)
//   - error: The specific error type within that domain
//
// These codes are stable: the CLI maps each code to a distinct exit code, so
// scripts wrapping wakehold can rely on them. Human-readable messages are
// provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Duration domain - timeout string parsing
	CodeDurationInvalid = "duration.invalid" // Malformed or empty duration string

	// Process domain - waitfor PID watching
	CodeProcessNotFound = "process.not_found" // Watched PID does not exist at start

	// Power domain - platform power-management capability
	CodePowerAcquireFailed = "power.acquire_failed" // Hold creation failed
	CodePowerReleaseFailed = "power.release_failed" // Hold release failed
	CodePowerQueryFailed   = "power.query_failed"   // Sleep-disabled query failed
	CodePowerUnsupported   = "power.unsupported"    // No inhibitor path on this platform

	// Privilege domain - dropping elevated privileges before spawning
	CodePrivilegeDropFailed = "privilege.drop_failed" // Could not resolve or apply invoking user's identity

	// Command domain - spawning the watched command
	CodeCommandSpawnFailed = "command.spawn_failed" // Command could not be launched

	// Config domain - TOML configuration loading
	CodeConfigLoadFailed = "config.load_failed" // Config file missing or unparsable

	// Storage domain - session audit persistence
	CodeStorageOpenFailed = "storage.open_failed" // Database open failed
	CodeStorageSaveFailed = "storage.save_failed" // Failed to save audit row

	// General domain - catch-all
	CodeUnknown = "error.unknown" // Unknown error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "duration.invalid")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}
