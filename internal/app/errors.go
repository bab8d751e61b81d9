package app

import (
	"fmt"
	"net/http"
)

// DomainError carries the HTTP status and user-facing message for the four
// failure kinds: validation (400), authentication (401), permission (403),
// not found (404). The message lands verbatim in the response envelope.
type DomainError struct {
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func validationError(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Message: message}
}

func authenticationError(message string) *DomainError {
	return &DomainError{Status: http.StatusUnauthorized, Message: message}
}

func permissionError(message string) *DomainError {
	return &DomainError{Status: http.StatusForbidden, Message: message}
}

func notFoundError(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Message: message}
}
