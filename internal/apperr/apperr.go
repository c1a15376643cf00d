// Package apperr defines the error kinds shared by the chat service layers.
//
// Kinds are sentinels matched with errors.Is. Storage and generation failures keep
// their cause for logging; the api boundary maps kinds to user-facing messages and
// never returns the cause text.
package apperr

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateUser     = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrWeakCredential    = errors.New("password too short")
	ErrUnauthorized      = errors.New("not owned by user")
	ErrStorage           = errors.New("storage failure")
	ErrGeneration        = errors.New("generation failure")
)

// kindError attaches a kind to a cause.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

// Storage wraps a store error so it matches ErrStorage.
func Storage(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return errors.WithMessage(err, msg)
	}
	return &kindError{kind: ErrStorage, cause: errors.Wrap(err, msg)}
}

// Generation wraps a generation backend error so it matches ErrGeneration.
func Generation(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrGeneration, cause: err}
}

// Violation is one failed field constraint.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// InvalidError is an ErrInvalidInput carrying the violated constraints.
type InvalidError struct {
	Violations []Violation
}

func (e *InvalidError) Error() string {
	if len(e.Violations) == 0 {
		return ErrInvalidInput.Error()
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid returns an ErrInvalidInput for the given violations.
func Invalid(violations ...Violation) error {
	return &InvalidError{Violations: violations}
}

// ViolationsOf extracts violations from an invalid input error.
func ViolationsOf(err error) []Violation {
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return invalid.Violations
	}
	return nil
}
