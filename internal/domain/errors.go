package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a request is structurally or semantically invalid
	ErrValidation = errors.New("validation failed")

	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrFileNotFound is returned when a file record cannot be found or is no longer live
	ErrFileNotFound = errors.New("file not found")

	// ErrForbidden is returned when the caller does not own the referenced resource
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when an operation is illegal in the resource's current state
	ErrConflict = errors.New("conflict with current state")

	// ErrTooManyJobs is returned when an owner hits the active job admission limit
	ErrTooManyJobs = errors.New("too many active jobs")
)

// NewValidationError builds a message carrying ErrValidation for errors.Is checks
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProcessingError wraps the error a processor failed with, after the job
// has already been marked FAILED. Callers receive it alongside the failed
// job so bookkeeping and the original cause stay separate.
type ProcessingError struct {
	JobID string
	Err   error
}

func (e *ProcessingError) Error() string {
	return "job processing failed: " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError wraps a processor failure for the given job
func NewProcessingError(jobID string, err error) error {
	return &ProcessingError{JobID: jobID, Err: err}
}
