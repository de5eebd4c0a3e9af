// Package errors provides the typed errors shared by the scripture,
// generation and storage packages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below unwraps to one of these unless
// it carries its own cause.
var (
	// ErrNotFound indicates a verse, song or job was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported dataset format or backend
	ErrUnsupported = errors.New("unsupported")
	// ErrGenerationFormat indicates a completion reply without a usable JSON object
	ErrGenerationFormat = errors.New("generation format")
)

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string // e.g. "song", "job", "passage"
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // "read", "open", "decompress", ...
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed dataset or config document.
type ParseError struct {
	Format  string // "JSON", "OSIS", "YAML", ...
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// GenerationFormatError reports a completion reply that could not be
// decoded into a song object. Raw holds the reply, truncated, for logs only;
// it is never returned to clients.
type GenerationFormatError struct {
	Stage string // "strict" or "extract"
	Raw   string
	Err   error
}

// maxRawLen bounds GenerationFormatError.Raw.
const maxRawLen = 512

func (e *GenerationFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion reply is not a song object (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("completion reply is not a song object (%s)", e.Stage)
}

// Is makes errors.Is(err, ErrGenerationFormat) hold while Unwrap still
// exposes the decoder error.
func (e *GenerationFormatError) Is(target error) bool {
	return target == ErrGenerationFormat
}

func (e *GenerationFormatError) Unwrap() error {
	return e.Err
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

// NewGenerationFormat creates a GenerationFormatError, truncating raw.
func NewGenerationFormat(stage, raw string, err error) *GenerationFormatError {
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen]
	}
	return &GenerationFormatError{Stage: stage, Raw: raw, Err: err}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target any) bool {
	return errors.As(err, target)
}
