package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies try-on failures
type ErrorKind string

const (
	KindInvalidFileType        ErrorKind = "INVALID_FILE_TYPE"
	KindFileTooLarge           ErrorKind = "FILE_TOO_LARGE"
	KindImageDecodeFailure     ErrorKind = "IMAGE_DECODE_FAILURE"
	KindModelLoadFailure       ErrorKind = "MODEL_LOAD_FAILURE"
	KindNoPersonDetected       ErrorKind = "NO_PERSON_DETECTED"
	KindLowConfidenceDetection ErrorKind = "LOW_CONFIDENCE_DETECTION"
	KindGarmentAssetNotReady   ErrorKind = "GARMENT_ASSET_NOT_READY"
	KindRenderFailure          ErrorKind = "RENDER_FAILURE"
	KindActionBlocked          ErrorKind = "ACTION_BLOCKED"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidFileType        = &Error{Kind: KindInvalidFileType}
	ErrFileTooLarge           = &Error{Kind: KindFileTooLarge}
	ErrImageDecodeFailure     = &Error{Kind: KindImageDecodeFailure}
	ErrModelLoadFailure       = &Error{Kind: KindModelLoadFailure}
	ErrNoPersonDetected       = &Error{Kind: KindNoPersonDetected}
	ErrLowConfidenceDetection = &Error{Kind: KindLowConfidenceDetection}
	ErrGarmentAssetNotReady   = &Error{Kind: KindGarmentAssetNotReady}
	ErrRenderFailure          = &Error{Kind: KindRenderFailure}
	ErrActionBlocked          = &Error{Kind: KindActionBlocked}
)

// Error is a classified try-on failure
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates a classified error wrapping an optional cause
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Errorf creates a classified error with a formatted message
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can compare against the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a classified error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
