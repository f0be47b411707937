package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures crossing service boundaries.
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindUnavailable ErrorKind = "unavailable"
	ErrorKindAmbiguous   ErrorKind = "ambiguous"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindInternal    ErrorKind = "internal"
)

var (
	// ErrValidation marks malformed or incomplete input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a natural key (subdomain, username, email) that is already taken.
	ErrConflict = errors.New("resource already exists")
	// ErrUnavailable marks a downstream that could not be reached within policy.
	ErrUnavailable = errors.New("service temporarily unavailable")
	// ErrAmbiguous marks a write whose server-side outcome is unknown.
	ErrAmbiguous = errors.New("outcome unknown")
	// ErrNotFound marks a resource that does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInternal marks a local failure such as a storage error.
	ErrInternal = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	ErrorKindValidation:  ErrValidation,
	ErrorKindConflict:    ErrConflict,
	ErrorKindUnavailable: ErrUnavailable,
	ErrorKindAmbiguous:   ErrAmbiguous,
	ErrorKindNotFound:    ErrNotFound,
	ErrorKindInternal:    ErrInternal,
}

// ServiceError is the tagged error returned by downstream clients and the orchestrator.
type ServiceError struct {
	Kind     ErrorKind
	Service  string
	Resource string
	// Field names the natural key involved in a conflict (subdomain, username, email).
	Field   string
	Message string
	// Fallback is set when the error was produced by a client fallback instead of a real response.
	Fallback bool
	// Reason records why the client degraded; empty unless Fallback is set.
	Reason DegradationReason
	Err    error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	if e.Service != "" {
		b.WriteString(e.Service)
		b.WriteString(": ")
	}
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(" ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match a ServiceError against the sentinel of its kind.
func (e *ServiceError) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// NewServiceError builds a ServiceError of the given kind.
func NewServiceError(kind ErrorKind, service, resource, message string, cause error) *ServiceError {
	return &ServiceError{
		Kind:     kind,
		Service:  service,
		Resource: resource,
		Message:  message,
		Err:      cause,
	}
}

// KindOf returns the kind of the first ServiceError in the chain, or Internal for anything else.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ErrorKindValidation
	}
	return ErrorKindInternal
}

// AsServiceError extracts the first ServiceError from the chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsFallback reports whether err was synthesised by a client fallback, i.e. the downstream was degraded
// rather than authoritative about the outcome.
func IsFallback(err error) bool {
	svcErr, ok := AsServiceError(err)
	return ok && svcErr.Fallback
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates field-level problems with a registration request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field problem.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// HasField reports whether a problem was recorded for field.
func (e *ValidationError) HasField(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
