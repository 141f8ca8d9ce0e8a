package tmdb

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid tmdb configuration")
	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized: invalid API key")
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrCircuitOpen indicates the circuit breaker rejected the request
	ErrCircuitOpen = errors.New("tmdb unavailable: circuit open")
	// ErrEmptyQuery indicates a search without a query
	ErrEmptyQuery = errors.New("search query is empty")
)

// APIError represents a TMDB API error
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("tmdb API error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known statuses onto the sentinel errors so errors.Is works.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsNotFound():
		return ErrNotFound
	case e.IsUnauthorized():
		return ErrUnauthorized
	}
	return nil
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError reports a 5xx response
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
