package model

import "errors"

type ErrorKind string

const (
	ErrKindConnection    ErrorKind = "connection"
	ErrKindModelNotFound ErrorKind = "model_not_found"
	ErrKindContextLength ErrorKind = "context_length"
	ErrKindResponse      ErrorKind = "response"
)

// BackendError classifies generation failures so callers can report them
// without string-matching provider messages.
type BackendError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

func IsModelNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == ErrKindModelNotFound
}

func IsContextLength(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == ErrKindContextLength
}
