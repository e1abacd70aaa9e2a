package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation classifies malformed or missing input. The concrete
	// error is a *ValidationError carrying field details.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned for failed logins. The message never
	// reveals which half of the credentials was wrong.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrInvalidToken is returned for bad, expired or malformed bearer tokens.
	ErrInvalidToken = errors.New("invalid token")

	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrConfiguration = errors.New("configuration error")
)

// FieldError describes one invalid input field by its JSON path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError is returned when input fails validation.
type ValidationError struct {
	Message string
	Details []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Path+": "+d.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Is makes every *ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(path, message string) *ValidationError {
	return &ValidationError{
		Message: "Validation failed",
		Details: []FieldError{{Path: path, Message: message}},
	}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func conflict(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConflict)
}
