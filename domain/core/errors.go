package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrRunNotFound        = fmt.Errorf("%w: run", ErrNotFound)
	ErrArtifactNotFound   = fmt.Errorf("%w: artifact", ErrNotFound)
	ErrRegisteredNotFound = fmt.Errorf("%w: registered model", ErrNotFound)

	// Configuration errors
	ErrConfiguration       = errors.New("configuration error")
	ErrUnknownArchitecture = fmt.Errorf("%w: unknown architecture", ErrConfiguration)

	// Data errors
	ErrData = errors.New("data error")

	// Search errors
	ErrTrialEvaluation = errors.New("trial evaluation failed")
	ErrStudyDone       = errors.New("study already finished")

	// Selection and serving errors
	ErrNoCandidates        = errors.New("no candidate runs to select from")
	ErrArtifactUnavailable = errors.New("no production artifact available")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func NewUnknownArchitectureError(arch string) error {
	return fmt.Errorf("%w %q", ErrUnknownArchitecture, arch)
}

func NewDataError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}

// NewTrialEvaluationError keeps the cause reachable through errors.Is/As.
func NewTrialEvaluationError(arch string, trial int, cause error) error {
	return fmt.Errorf("%w: %s trial %d: %w", ErrTrialEvaluation, arch, trial, cause)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsUnknownArchitectureError(err error) bool {
	return errors.Is(err, ErrUnknownArchitecture)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrData)
}

func IsTrialEvaluationError(err error) bool {
	return errors.Is(err, ErrTrialEvaluation)
}

func IsNoCandidatesError(err error) bool {
	return errors.Is(err, ErrNoCandidates)
}

func IsArtifactUnavailableError(err error) bool {
	return errors.Is(err, ErrArtifactUnavailable)
}
