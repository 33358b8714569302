package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error types for consistent error handling across the storefront.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call
// (database, image host, LLM provider).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or invalid token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates the request clashes with existing state,
// e.g. a chat session id already bound to another business.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrDuplicatePhone is returned by signup when the phone is already registered.
type ErrDuplicatePhone struct {
	Phone string
}

func (e *ErrDuplicatePhone) Error() string {
	return "phone already registered"
}

// ErrInvalidCredentials is returned by login for any phone/password mismatch.
// It never says which half was wrong.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid phone or password"
}

// ErrSlugCollision indicates the slug is taken by another profile.
type ErrSlugCollision struct {
	Slug string
}

func (e *ErrSlugCollision) Error() string {
	return fmt.Sprintf("slug already in use: %s", e.Slug)
}

// ErrBootstrap wraps a schema bootstrap failure. The process cannot serve
// without a schema, so callers treat it as fatal.
type ErrBootstrap struct {
	Statement string
	Err       error
}

func (e *ErrBootstrap) Error() string {
	return fmt.Sprintf("schema bootstrap failed on %q: %v", e.Statement, e.Err)
}

func (e *ErrBootstrap) Unwrap() error {
	return e.Err
}

// IsExpected reports whether err is a business outcome (not found, conflict,
// validation, ...) rather than an infrastructure failure. Expected errors are
// neither retried nor counted against circuit breakers.
func IsExpected(err error) bool {
	if err == nil {
		return true
	}
	var (
		notFound     *ErrNotFound
		validation   *ErrValidation
		conflict     *ErrConflict
		dupPhone     *ErrDuplicatePhone
		invalidCreds *ErrInvalidCredentials
		slug         *ErrSlugCollision
		unauthorized *ErrUnauthorized
	)
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &validation),
		errors.As(err, &conflict),
		errors.As(err, &dupPhone),
		errors.As(err, &invalidCreds),
		errors.As(err, &slug),
		errors.As(err, &unauthorized):
		return true
	case errors.Is(err, context.Canceled):
		return true
	}
	return false
}
