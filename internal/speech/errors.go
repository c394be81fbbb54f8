package speech

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies what part of speaking failed.
type ErrorCode string

const (
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"

	ErrorCodeAudioFailure ErrorCode = "AUDIO_FAILURE"
	ErrorCodeAudioDevice  ErrorCode = "AUDIO_DEVICE"

	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeTextTooLong  ErrorCode = "TEXT_TOO_LONG"

	ErrorCodeCanceled ErrorCode = "CANCELED"
)

// ErrEmptyText is the cause for any attempt to speak blank text.
var ErrEmptyText = errors.New("text is empty")

// SynthesisError is a failure to turn text into sound. It never stops the
// speech worker; the utterance is dropped and the next one is spoken.
type SynthesisError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// NewSynthesisError creates a SynthesisError.
func NewSynthesisError(code ErrorCode, message string, cause error) *SynthesisError {
	return &SynthesisError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext attaches a key/value for logging.
func (e *SynthesisError) WithContext(key string, value any) *SynthesisError {
	e.Context[key] = value
	return e
}

// IsFatal reports whether the backend cannot recover without operator help,
// such as a missing binary or audio device.
func (e *SynthesisError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable, ErrorCodeAudioDevice:
		return true
	default:
		return false
	}
}

// engineError classifies a failure returned by an engine.
func engineError(err error) *SynthesisError {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewSynthesisError(ErrorCodeEngineTimeout, "synthesis timed out", err)
	case errors.Is(err, context.Canceled):
		return NewSynthesisError(ErrorCodeCanceled, "synthesis canceled", err)
	default:
		return NewSynthesisError(ErrorCodeEngineFailure, "synthesis failed", err)
	}
}
