package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrVersionConflict        = errors.New("record was modified concurrently")
	ErrTerminalRecord         = errors.New("verification is already finalized")
	ErrVerificationInProgress = errors.New("verification is already under review")
	ErrOpenVerificationExists = errors.New("user already has an open verification")
	ErrNoOpenVerification     = errors.New("no open verification; start one first")
	ErrDocumentsMissing       = errors.New("documents have not been uploaded")
	ErrCPFExists              = errors.New("cpf already registered")
	ErrRegistrationDenied     = errors.New("registration denied")
	ErrAlreadyVerified        = errors.New("identity already verified")
	ErrUnauthenticated        = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
)

// Response codes understood by the client for the visit flow.
const (
	CodeCPFExists           = "CPF_EXISTS"
	CodePendingReview       = "PENDING_REVIEW"
	CodeRegistrationDenied  = "REGISTRATION_DENIED"
	CodeVerificationPending = "VERIFICATION_PENDING"
)

// ValidationError carries one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Merge copies the field messages of a *ValidationError into e and returns
// nil. Any other error is returned unchanged.
func (e *ValidationError) Merge(err error) error {
	var other *ValidationError
	if !errors.As(err, &other) {
		return err
	}
	for field, msg := range other.Fields {
		e.Add(field, msg)
	}
	return nil
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// GateError is returned when the authorization gate sends the caller
// somewhere else. It matches ErrForbidden.
type GateError struct {
	Route GateRoute
}

func (e *GateError) Error() string {
	return "action not allowed yet, continue at " + string(e.Route)
}

func (e *GateError) Is(target error) bool {
	return target == ErrForbidden
}
