package evaluation

import (
	"errors"
	"fmt"
)

// RuntimeError reports a failure while evaluating a stream.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Pattern names the affected pattern, when known.
	Pattern string

	// RunID identifies the affected run, when known.
	RunID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStreamFailed indicates the input stream returned an error.
	ErrCodeStreamFailed RuntimeErrorCode = "STREAM_FAILED"

	// ErrCodeSinkFailed indicates the match sink rejected a match.
	ErrCodeSinkFailed RuntimeErrorCode = "SINK_FAILED"

	// ErrCodeEngineStopped indicates events were submitted after Stop.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Pattern != "" {
		msg += fmt.Sprintf(" (pattern=%s)", e.Pattern)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsStreamError reports whether err came from the input stream.
func IsStreamError(err error) bool {
	return hasCode(err, ErrCodeStreamFailed)
}

// IsSinkError reports whether err came from the match sink.
func IsSinkError(err error) bool {
	return hasCode(err, ErrCodeSinkFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func streamError(err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeStreamFailed, Message: "reading events", Err: err}
}

func sinkError(job Job, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSinkFailed,
		Message: "emitting match",
		Pattern: job.Tree.Pattern().Name,
		RunID:   job.RunID,
		Err:     err,
	}
}
