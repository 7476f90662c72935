package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for a state change that is not an edge
	// of the job state machine.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrStateChanged is returned when the job was not in the expected state,
	// typically because another worker claimed it first.
	ErrStateChanged = errors.New("job state changed concurrently")
)

// AdmissionError rejects a render request before a job is created. Reason is
// shown to the requester as is.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string {
	return e.Reason
}

// NewAdmissionError creates an admission error with a formatted reason
func NewAdmissionError(format string, args ...any) error {
	return &AdmissionError{Reason: fmt.Sprintf(format, args...)}
}

// IsAdmissionError reports whether err is an admission rejection.
func IsAdmissionError(err error) bool {
	var admissionErr *AdmissionError
	return errors.As(err, &admissionErr)
}

// RenderError wraps a failure of the external render engine
type RenderError struct {
	JobID string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render of job %s failed: %v", e.JobID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// UploadError wraps a failed artifact upload
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
