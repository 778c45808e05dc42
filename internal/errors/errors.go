package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"automl/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of an inner AppError
// is kept; otherwise it is derived from the domain sentinel in the chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr == err {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the outermost AppError code, falling back to a code
// derived from domain sentinels.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case core.IsConfigurationError(err):
		return CodeConfigInvalid
	case core.IsDataError(err):
		return CodeDataInvalid
	case core.IsTrialEvaluationError(err):
		return CodeTrialFailed
	case core.IsNoCandidatesError(err):
		return CodeNoCandidates
	case core.IsArtifactUnavailableError(err):
		return CodeModelUnavailable
	case core.IsNotFoundError(err):
		return CodeNotFound
	case err == nil:
		return ""
	}
	return CodeInternalError
}

// HTTPStatus maps an error onto the status code the HTTP surfaces return.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidInput, CodeValidationError, CodeConfigInvalid, CodeDataInvalid:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeModelUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ExitCode maps an error onto a process exit status for the CLI.
func ExitCode(err error) int {
	switch GetCode(err) {
	case "":
		return 0
	case CodeConfigInvalid:
		return 2
	case CodeDataInvalid:
		return 3
	case CodeNoCandidates:
		return 4
	}
	return 1
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeDataInvalid      = "DATA_INVALID"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeTrialFailed      = "TRIAL_FAILED"
	CodeNoCandidates     = "NO_CANDIDATES"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeArtifactError    = "ARTIFACT_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Cause: core.ErrNotFound}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func ArtifactError(message string, cause error) *AppError {
	return &AppError{Code: CodeArtifactError, Message: message, Cause: cause}
}
