package service

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when no record exists for the requested id.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnknownTemplate is returned for template ids missing from the registry.
	ErrUnknownTemplate = errors.New("template not found")
	// ErrInvalidCredentials is returned by operator login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError is a rejected upload or request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ExtractionTransportError reports that the model endpoint could not be reached or answered with an error.
type ExtractionTransportError struct {
	Err error
}

func (e *ExtractionTransportError) Error() string {
	return fmt.Sprintf("extraction request failed: %v", e.Err)
}

func (e *ExtractionTransportError) Unwrap() error {
	return e.Err
}

// ExtractionParseError reports that the model answer was not a JSON object. Raw keeps the answer text.
type ExtractionParseError struct {
	Raw string
	Err error
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("failed to parse extraction response: %v", e.Err)
}

func (e *ExtractionParseError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TranslationError is logged and answered with a fallback; it never reaches a client.
type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed: %v", e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
