package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected while the loop handled an event.
//
// Runtime errors never stop the loop. They are logged with the event that
// caused them and processing continues with the next event.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the logical clock value of the failing event.
	Seq int64

	// Event is the name of the failing event.
	Event string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeHandlerPanic indicates the scope tree panicked on an event.
	ErrCodeHandlerPanic RuntimeErrorCode = "HANDLER_PANIC"

	// ErrCodeInvalidEvent indicates a queued event carried no payload.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"

	// ErrCodeEventLog indicates the event could not be appended to the log.
	ErrCodeEventLog RuntimeErrorCode = "EVENT_LOG"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s, seq=%d)", e.Code, e.Message, e.Event, e.Seq)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPanicError returns true if the error is a recovered handler panic.
// Uses errors.As to handle wrapped errors.
func IsPanicError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeHandlerPanic
	}
	return false
}

// IsEventLogError returns true if the error came from the event log.
func IsEventLogError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEventLog
	}
	return false
}

// NewPanicError creates a RuntimeError for a recovered panic.
func NewPanicError(seq int64, event string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeHandlerPanic,
		Message: "scope tree panicked",
		Seq:     seq,
		Event:   event,
		Details: map[string]string{
			"panic": fmt.Sprint(recovered),
		},
	}
}
