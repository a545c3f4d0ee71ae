package services

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrAlreadyExists      = errors.New("profile already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	// ErrDependency marks a failing external collaborator such as the
	// search index or Redis.
	ErrDependency = errors.New("dependency failure")
)

// ValidationError is rejected input. Message is safe to show to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
